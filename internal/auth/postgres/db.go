// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/holomush/userauth/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool used here. pgxmock.PgxPoolIface
// satisfies it.
type poolIface interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier abstracts query execution for both the pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey is the context key for the active pgx.Tx.
type txKey struct{}

// txFromContext returns the transaction stored by Transactor, if any.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn returns the active transaction from ctx, falling back to pool.
func conn(ctx context.Context, pool poolIface) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return pool
}

// classify attaches an auth sentinel to a driver error. Unique
// violations become ErrAlreadyExists; everything else is treated as the
// store being unavailable.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %w", auth.ErrAlreadyExists, err)
	}
	return fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err)
}
