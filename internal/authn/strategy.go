// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/internal/credentials"
)

// AuthorizationHeader carries Basic credentials.
const AuthorizationHeader = "Authorization"

// DefaultSessionCookie is the cookie that carries the session token.
const DefaultSessionCookie = "session_id"

// CredentialChecker verifies an email and secret. *auth.Service implements it.
type CredentialChecker interface {
	CheckCredentials(ctx context.Context, email, secret string) (*auth.User, bool, error)
}

// SessionResolver maps a session token to its user. *auth.Service implements it.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*auth.User, bool, error)
}

// NoAuth never establishes an identity.
type NoAuth struct{}

// Authenticate always returns Anonymous.
func (NoAuth) Authenticate(context.Context, Request) Result {
	return anonymous()
}

// BasicAuth authenticates the Authorization header. It never creates a
// session.
type BasicAuth struct {
	checker CredentialChecker
}

// NewBasicAuth creates a BasicAuth backed by checker.
func NewBasicAuth(checker CredentialChecker) *BasicAuth {
	return &BasicAuth{checker: checker}
}

// Authenticate parses the header and checks the credentials. A missing or
// malformed header and wrong credentials are all Anonymous.
func (b *BasicAuth) Authenticate(ctx context.Context, r Request) Result {
	header, ok := r.Header(AuthorizationHeader)
	if !ok {
		return anonymous()
	}
	email, secret, ok := credentials.Parse(header)
	if !ok {
		return anonymous()
	}

	user, ok, err := b.checker.CheckCredentials(ctx, email, secret)
	if err != nil {
		return failed(oops.Code("AUTHN_BASIC_FAILED").
			With("operation", "check credentials").
			Wrap(err))
	}
	if !ok {
		return anonymous()
	}
	return authenticated(user)
}

// SessionAuth authenticates the session cookie.
type SessionAuth struct {
	resolver SessionResolver
	cookie   string
}

// NewSessionAuth creates a SessionAuth reading cookie. An empty name
// selects DefaultSessionCookie.
func NewSessionAuth(resolver SessionResolver, cookie string) *SessionAuth {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return &SessionAuth{resolver: resolver, cookie: cookie}
}

// CookieName returns the cookie this authenticator reads.
func (s *SessionAuth) CookieName() string {
	return s.cookie
}

// Authenticate resolves the session cookie to its user.
func (s *SessionAuth) Authenticate(ctx context.Context, r Request) Result {
	token, ok := r.Cookie(s.cookie)
	if !ok || token == "" {
		return anonymous()
	}

	user, ok, err := s.resolver.ResolveSession(ctx, token)
	if err != nil {
		return failed(oops.Code("AUTHN_SESSION_FAILED").
			With("operation", "resolve session").
			Wrap(err))
	}
	if !ok {
		return anonymous()
	}
	return authenticated(user)
}

var (
	_ Authenticator = NoAuth{}
	_ Authenticator = (*BasicAuth)(nil)
	_ Authenticator = (*SessionAuth)(nil)
)
