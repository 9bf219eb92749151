// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/userauth/internal/auth"
)

const selectUserColumns = `id, email, hashed_password, session_id, reset_token, created_at, updated_at`

// UserStore implements auth.UserStore using PostgreSQL.
type UserStore struct {
	pool poolIface
	now  func() time.Time
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool poolIface) *UserStore {
	return &UserStore{pool: pool, now: time.Now}
}

// FindUserBy returns the oldest user matching every criterion. Inside a
// transaction the row is locked until commit.
func (s *UserStore) FindUserBy(ctx context.Context, criteria auth.Criteria) (*auth.User, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	attrs := sortedAttributes(criteria)
	where := make([]string, 0, len(attrs))
	args := make([]any, 0, len(attrs))
	for i, attr := range attrs {
		// attr is validated above; column names are never user input
		where = append(where, fmt.Sprintf("%s = $%d", attr, i+1))
		args = append(args, criteria[attr])
	}

	query := "SELECT " + selectUserColumns + " FROM users WHERE " +
		strings.Join(where, " AND ") + " ORDER BY id LIMIT 1"
	if _, ok := txFromContext(ctx); ok {
		query += " FOR UPDATE"
	}

	user, err := scanUser(conn(ctx, s.pool).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("criteria", attributeNames(attrs)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").
			With("operation", "select user").
			With("criteria", attributeNames(attrs)).
			Wrap(classify(err))
	}
	return user, nil
}

// AddUser inserts a new user. Duplicate emails return an error wrapping
// auth.ErrAlreadyExists.
func (s *UserStore) AddUser(ctx context.Context, email, hashedPassword string) (*auth.User, error) {
	now := s.now().UTC()
	user := &auth.User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO users (id, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID.String(),
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", email).
			Wrap(classify(err))
	}
	return user, nil
}

// UpdateUser writes fields to the user with the given id in one statement.
func (s *UserStore) UpdateUser(ctx context.Context, id ulid.ULID, fields auth.Fields) error {
	if err := fields.Validate(); err != nil {
		return err //nolint:wrapcheck // already coded
	}

	attrs := make([]auth.Attribute, 0, len(fields))
	for attr := range fields {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })

	set := make([]string, 0, len(attrs)+1)
	args := []any{id.String()}
	for _, attr := range attrs {
		args = append(args, fields[attr])
		set = append(set, fmt.Sprintf("%s = $%d", attr, len(args)))
	}
	args = append(args, s.now().UTC())
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))

	query := "UPDATE users SET " + strings.Join(set, ", ") + " WHERE id = $1"

	result, err := conn(ctx, s.pool).Exec(ctx, query, args...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", id.String()).
			With("fields", attributeNames(attrs)).
			Wrap(classify(err))
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		user  auth.User
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.HashedPassword,
		&user.SessionID,
		&user.ResetToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse user id").With("id", idStr).Wrap(err)
	}
	return &user, nil
}

func sortedAttributes(c auth.Criteria) []auth.Attribute {
	attrs := make([]auth.Attribute, 0, len(c))
	for attr := range c {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
	return attrs
}

func attributeNames(attrs []auth.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = string(a)
	}
	return names
}

var _ auth.UserStore = (*UserStore)(nil)
