// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/pkg/errutil"
)

var userColumns = []string{"id", "email", "hashed_password", "session_id", "reset_token", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*UserStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewUserStore(mock)
	store.now = func() time.Time { return fixed }
	return store, mock
}

func TestUserStore_FindUserBy(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	session := "tok-1"

	tests := []struct {
		name      string
		criteria  auth.Criteria
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name:     "finds by email",
			criteria: auth.Criteria{auth.AttrEmail: "a@example.com"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns).
					AddRow(id.String(), "a@example.com", "hash", &session, nil, created, created)
				mock.ExpectQuery(regexp.QuoteMeta(
					"SELECT "+selectUserColumns+" FROM users WHERE email = $1 ORDER BY id LIMIT 1")).
					WithArgs("a@example.com").
					WillReturnRows(rows)
			},
		},
		{
			name:     "multiple criteria are ordered by attribute name",
			criteria: auth.Criteria{auth.AttrSessionID: "tok-1", auth.AttrEmail: "a@example.com"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(userColumns).
					AddRow(id.String(), "a@example.com", "hash", &session, nil, created, created)
				mock.ExpectQuery(regexp.QuoteMeta(
					"WHERE email = $1 AND session_id = $2 ORDER BY id LIMIT 1")).
					WithArgs("a@example.com", "tok-1").
					WillReturnRows(rows)
			},
		},
		{
			name:     "no rows maps to not found",
			criteria: auth.Criteria{auth.AttrResetToken: "missing"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta("WHERE reset_token = $1")).
					WithArgs("missing").
					WillReturnRows(pgxmock.NewRows(userColumns))
			},
			wantErr:  auth.ErrNotFound,
			wantCode: "USER_NOT_FOUND",
		},
		{
			name:     "driver failure maps to store unavailable",
			criteria: auth.Criteria{auth.AttrEmail: "a@example.com"},
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("SELECT").
					WithArgs("a@example.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr:  auth.ErrStoreUnavailable,
			wantCode: "USER_FIND_FAILED",
		},
		{
			name:      "unknown attribute is rejected before querying",
			criteria:  auth.Criteria{auth.Attribute("password"): "x"},
			setupMock: func(pgxmock.PgxPoolIface) {},
			wantErr:   auth.ErrInvalidField,
			wantCode:  "STORE_INVALID_FIELD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setupMock(mock)

			user, err := store.FindUserBy(ctx, tt.criteria)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, user.ID)
				assert.Equal(t, "a@example.com", user.Email)
				require.NotNil(t, user.SessionID)
				assert.Equal(t, "tok-1", *user.SessionID)
				assert.Nil(t, user.ResetToken)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserStore_AddUser(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "a@example.com", "hash", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		user, err := store.AddUser(ctx, "a@example.com", "hash")
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", user.Email)
		assert.Equal(t, "hash", user.HashedPassword)
		assert.NotEqual(t, ulid.ULID{}, user.ID)
		assert.Nil(t, user.SessionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to already exists", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "a@example.com", "hash", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})

		_, err := store.AddUser(ctx, "a@example.com", "hash")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)
		assert.NotErrorIs(t, err, auth.ErrStoreUnavailable)
		errutil.AssertErrorCode(t, err, "USER_CREATE_FAILED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStore_UpdateUser(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("sets and clears in one statement", func(t *testing.T) {
		store, mock := newMockStore(t)
		hash := "new-hash"
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE users SET hashed_password = $2, reset_token = $3, updated_at = $4 WHERE id = $1")).
			WithArgs(id.String(), &hash, (*string)(nil), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := store.UpdateUser(ctx, id, auth.Fields{
			auth.AttrHashedPassword: auth.Set(hash),
			auth.AttrResetToken:     nil,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows affected maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE users SET").
			WithArgs(id.String(), (*string)(nil), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := store.UpdateUser(ctx, id, auth.Fields{auth.AttrSessionID: nil})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("id is immutable", func(t *testing.T) {
		store, mock := newMockStore(t)
		err := store.UpdateUser(ctx, id, auth.Fields{auth.AttrID: auth.Set("x")})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrInvalidField)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failure maps to store unavailable", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE users SET").
			WithArgs(id.String(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("timeout"))

		err := store.UpdateUser(ctx, id, auth.Fields{auth.AttrSessionID: auth.Set("tok")})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactor_InTransaction(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("commits and locks rows read inside the transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		tx := NewTransactor(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1 ORDER BY id LIMIT 1 FOR UPDATE")).
			WithArgs("a@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(id.String(), "a@example.com", "hash", nil, nil, created, created))
		mock.ExpectExec("UPDATE users SET session_id").
			WithArgs(id.String(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := tx.InTransaction(ctx, func(ctx context.Context) error {
			u, err := store.FindUserBy(ctx, auth.Criteria{auth.AttrEmail: "a@example.com"})
			if err != nil {
				return err
			}
			return store.UpdateUser(ctx, u.ID, auth.Fields{auth.AttrSessionID: auth.Set("tok")})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		_, mock := newMockStore(t)
		tx := NewTransactor(mock)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tx.InTransaction(ctx, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure maps to store unavailable", func(t *testing.T) {
		_, mock := newMockStore(t)
		tx := NewTransactor(mock)

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := tx.InTransaction(ctx, func(context.Context) error {
			t.Fatal("fn must not run")
			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
		errutil.AssertErrorCode(t, err, "TX_BEGIN_FAILED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		_, mock := newMockStore(t)
		tx := NewTransactor(mock)

		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := tx.InTransaction(ctx, func(ctx context.Context) error {
			return tx.InTransaction(ctx, func(context.Context) error {
				calls++
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
