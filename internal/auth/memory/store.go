// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process auth.UserStore for development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/userauth/internal/auth"
)

// txKey marks a context as running inside a Store transaction.
type txKey struct{}

// Store is a mutex-guarded map of users. It implements both
// auth.UserStore and auth.Transactor. A transaction holds the lock for
// its whole duration and restores a snapshot if fn fails.
type Store struct {
	mu    sync.Mutex
	users map[ulid.ULID]auth.User
	now   func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users: make(map[ulid.ULID]auth.User),
		now:   time.Now,
	}
}

// InTransaction runs fn with exclusive access to the store.
// Nested calls join the outer transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[ulid.ULID]auth.User, len(s.users))
	for id, u := range s.users {
		snapshot[id] = u
	}

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.users = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock acquires the mutex unless ctx already holds it through a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// FindUserBy returns the oldest user matching every criterion.
func (s *Store) FindUserBy(ctx context.Context, criteria auth.Criteria) (*auth.User, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("USER_FIND_FAILED").Wrap(auth.ErrStoreUnavailable)
	}

	unlock := s.lock(ctx)
	defer unlock()

	ids := make([]ulid.ULID, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })

	for _, id := range ids {
		u := s.users[id]
		if matches(&u, criteria) {
			return clone(&u), nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").
		With("criteria", criteriaKeys(criteria)).
		Wrap(auth.ErrNotFound)
}

// AddUser inserts a user. Emails are unique.
func (s *Store) AddUser(ctx context.Context, email, hashedPassword string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").Wrap(auth.ErrStoreUnavailable)
	}

	unlock := s.lock(ctx)
	defer unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, oops.Code("USER_EMAIL_TAKEN").
				With("email", email).
				Wrap(auth.ErrAlreadyExists)
		}
	}

	now := s.now()
	u := auth.User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[u.ID] = u
	return clone(&u), nil
}

// UpdateUser applies fields to the user with the given id. All fields are
// written or none are.
func (s *Store) UpdateUser(ctx context.Context, id ulid.ULID, fields auth.Fields) error {
	if err := fields.Validate(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("USER_UPDATE_FAILED").Wrap(auth.ErrStoreUnavailable)
	}

	unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}

	if email := fields[auth.AttrEmail]; email != nil && *email != u.Email {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *email {
				return oops.Code("USER_EMAIL_TAKEN").
					With("email", *email).
					Wrap(auth.ErrAlreadyExists)
			}
		}
	}

	for attr, v := range fields {
		switch attr {
		case auth.AttrEmail:
			u.Email = *v
		case auth.AttrHashedPassword:
			u.HashedPassword = *v
		case auth.AttrSessionID:
			u.SessionID = copyPtr(v)
		case auth.AttrResetToken:
			u.ResetToken = copyPtr(v)
		}
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func matches(u *auth.User, criteria auth.Criteria) bool {
	for attr, want := range criteria {
		var got *string
		switch attr {
		case auth.AttrID:
			id := u.ID.String()
			got = &id
		case auth.AttrEmail:
			got = &u.Email
		case auth.AttrHashedPassword:
			got = &u.HashedPassword
		case auth.AttrSessionID:
			got = u.SessionID
		case auth.AttrResetToken:
			got = u.ResetToken
		}
		if got == nil || *got != want {
			return false
		}
	}
	return true
}

func criteriaKeys(c auth.Criteria) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func clone(u *auth.User) *auth.User {
	c := *u
	c.SessionID = copyPtr(u.SessionID)
	c.ResetToken = copyPtr(u.ResetToken)
	return &c
}

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var (
	_ auth.UserStore  = (*Store)(nil)
	_ auth.Transactor = (*Store)(nil)
)
