// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when registering an email that is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidField is returned when a lookup or update names an
	// attribute the user record does not have.
	ErrInvalidField = errors.New("invalid field")

	// ErrStoreUnavailable wraps collaborator failures (connection loss,
	// timeouts). The service propagates it unchanged and never retries.
	ErrStoreUnavailable = errors.New("store unavailable")
)
