// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"context"

	"github.com/holomush/userauth/internal/auth"
)

// userKey is a private type for the user context key.
type userKey struct{}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, or nil when the request
// was not authenticated.
func UserFromContext(ctx context.Context) *auth.User {
	if u, ok := ctx.Value(userKey{}).(*auth.User); ok {
		return u
	}
	return nil
}
