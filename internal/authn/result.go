// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"context"

	"github.com/holomush/userauth/internal/auth"
)

// Outcome is the result class of an authentication attempt.
type Outcome int

const (
	// Anonymous means no identity could be established. Missing, malformed
	// and wrong credentials all produce it.
	Anonymous Outcome = iota
	// Authenticated means Result.User is the caller.
	Authenticated
	// Failed means a collaborator failed; Result.Err holds the cause.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "anonymous"
	}
}

// Result carries the outcome of an authentication attempt.
type Result struct {
	Outcome Outcome
	User    *auth.User // populated only when Outcome == Authenticated
	Err     error      // populated only when Outcome == Failed
}

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r Request) Result
}

func anonymous() Result {
	return Result{Outcome: Anonymous}
}

func authenticated(u *auth.User) Result {
	return Result{Outcome: Authenticated, User: u}
}

func failed(err error) Result {
	return Result{Outcome: Failed, Err: err}
}
