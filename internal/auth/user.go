// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is an identity record.
type User struct {
	ID             ulid.ULID
	Email          string
	HashedPassword string
	SessionID      *string // nil when logged out
	ResetToken     *string // nil when no reset is pending
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasSession reports whether the user has an active session.
func (u *User) HasSession() bool {
	return u.SessionID != nil && *u.SessionID != ""
}

// Attribute names a user record field usable in lookups and updates.
type Attribute string

// User attributes.
const (
	AttrID             Attribute = "id"
	AttrEmail          Attribute = "email"
	AttrHashedPassword Attribute = "hashed_password"
	AttrSessionID      Attribute = "session_id"
	AttrResetToken     Attribute = "reset_token"
)

// Valid reports whether a is a known attribute.
func (a Attribute) Valid() bool {
	switch a {
	case AttrID, AttrEmail, AttrHashedPassword, AttrSessionID, AttrResetToken:
		return true
	}
	return false
}

// Criteria selects users whose attributes equal the given values.
type Criteria map[Attribute]string

// Validate returns ErrInvalidField if any attribute is unknown, or an
// error if the criteria are empty.
func (c Criteria) Validate() error {
	if len(c) == 0 {
		return oops.Code("STORE_EMPTY_CRITERIA").Errorf("criteria cannot be empty")
	}
	for attr := range c {
		if !attr.Valid() {
			return oops.Code("STORE_INVALID_FIELD").
				With("field", string(attr)).
				Wrap(ErrInvalidField)
		}
	}
	return nil
}

// Fields are attribute updates. A nil value clears a nullable attribute.
// The id attribute is immutable and rejected.
type Fields map[Attribute]*string

// Validate returns ErrInvalidField for unknown or immutable attributes.
func (f Fields) Validate() error {
	for attr, v := range f {
		if !attr.Valid() || attr == AttrID {
			return oops.Code("STORE_INVALID_FIELD").
				With("field", string(attr)).
				Wrap(ErrInvalidField)
		}
		if v == nil && (attr == AttrEmail || attr == AttrHashedPassword) {
			return oops.Code("STORE_INVALID_FIELD").
				With("field", string(attr)).
				Errorf("%s cannot be cleared", attr)
		}
	}
	return nil
}

// Set returns a pointer to v, for building Fields.
func Set(v string) *string {
	return &v
}

// UserStore persists users. Implementations must return errors wrapping
// ErrNotFound for missing users and ErrStoreUnavailable for collaborator
// failures. Calls made with a context from Transactor.InTransaction
// participate in that transaction.
type UserStore interface {
	// FindUserBy returns the first user matching every criterion.
	FindUserBy(ctx context.Context, criteria Criteria) (*User, error)

	// AddUser inserts a new user and returns it.
	AddUser(ctx context.Context, email, hashedPassword string) (*User, error)

	// UpdateUser applies fields to the user with the given id.
	UpdateUser(ctx context.Context, id ulid.ULID, fields Fields) error
}

// Transactor runs fn inside a store transaction. If fn returns an error
// every write made through the transactional context is discarded.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
