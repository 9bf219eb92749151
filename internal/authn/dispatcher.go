// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"context"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/userauth/internal/credentials"
)

// Mode selects how a Dispatcher picks its authenticator.
type Mode string

// Dispatcher modes.
const (
	// ModeAuto picks Basic when the Authorization header uses the Basic
	// scheme, else Session when the session cookie is present, else none.
	ModeAuto    Mode = "auto"
	ModeNone    Mode = "none"
	ModeBasic   Mode = "basic"
	ModeSession Mode = "session"
)

// ParseMode parses a configured mode. Empty selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeNone, ModeBasic, ModeSession:
		return m, nil
	default:
		return "", oops.Code("AUTHN_INVALID_MODE").
			With("mode", s).
			Errorf("unknown auth mode %q", s)
	}
}

// Scheme names the authenticator a Dispatcher chose.
type Scheme string

// Schemes.
const (
	SchemeNone    Scheme = "none"
	SchemeBasic   Scheme = "basic"
	SchemeSession Scheme = "session"
)

// Dispatcher routes a request to one of NoAuth, BasicAuth or SessionAuth.
type Dispatcher struct {
	mode    Mode
	basic   *BasicAuth
	session *SessionAuth
}

// NewDispatcher creates a Dispatcher. Both authenticators are required
// for ModeAuto; forced modes need only the one they select.
func NewDispatcher(mode Mode, basic *BasicAuth, session *SessionAuth) (*Dispatcher, error) {
	if mode == "" {
		mode = ModeAuto
	}
	if (mode == ModeAuto || mode == ModeBasic) && basic == nil {
		return nil, oops.Code("AUTHN_INVALID_CONFIG").With("mode", string(mode)).Errorf("basic authenticator is required")
	}
	if (mode == ModeAuto || mode == ModeSession) && session == nil {
		return nil, oops.Code("AUTHN_INVALID_CONFIG").With("mode", string(mode)).Errorf("session authenticator is required")
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	return &Dispatcher{mode: mode, basic: basic, session: session}, nil
}

// Mode returns the configured mode.
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Select returns the authenticator for r and its scheme.
func (d *Dispatcher) Select(r Request) (Authenticator, Scheme) {
	switch d.mode {
	case ModeNone:
		return NoAuth{}, SchemeNone
	case ModeBasic:
		return d.basic, SchemeBasic
	case ModeSession:
		return d.session, SchemeSession
	}

	// Other schemes fall through so they cannot hide a session cookie.
	if h, ok := r.Header(AuthorizationHeader); ok && strings.HasPrefix(h, credentials.Scheme) {
		return d.basic, SchemeBasic
	}
	if token, ok := r.Cookie(d.session.CookieName()); ok && token != "" {
		return d.session, SchemeSession
	}
	return NoAuth{}, SchemeNone
}

// Authenticate delegates to the selected authenticator.
func (d *Dispatcher) Authenticate(ctx context.Context, r Request) Result {
	a, _ := d.Select(r)
	return a.Authenticate(ctx, r)
}

// HasCredentials reports whether r carries any credential source this
// Dispatcher would read. ModeNone never has credentials.
func (d *Dispatcher) HasCredentials(r Request) bool {
	_, hasHeader := r.Header(AuthorizationHeader)
	hasCookie := false
	if d.session != nil {
		token, ok := r.Cookie(d.session.CookieName())
		hasCookie = ok && token != ""
	}

	switch d.mode {
	case ModeNone:
		return false
	case ModeBasic:
		return hasHeader
	case ModeSession:
		return hasCookie
	default:
		return hasHeader || hasCookie
	}
}

var _ Authenticator = (*Dispatcher)(nil)
