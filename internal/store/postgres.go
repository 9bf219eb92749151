// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectConfig controls how Connect reaches the database at startup.
type ConnectConfig struct {
	URL      string
	Attempts int           // total attempts, at least 1
	Backoff  time.Duration // initial delay, doubled per attempt
	MaxDelay time.Duration // cap on a single delay; zero means 10s
}

// poolOpener opens and verifies a pool. Replaced in tests.
type poolOpener func(ctx context.Context, url string) (*pgxpool.Pool, error)

// Connect opens a pgx pool and pings it, retrying with exponential backoff
// while the database is unreachable. Retrying happens only here, during
// process startup; store operations never retry.
func Connect(ctx context.Context, cfg ConnectConfig) (*pgxpool.Pool, error) {
	return connect(ctx, cfg, openPool)
}

func connect(ctx context.Context, cfg ConnectConfig, open poolOpener) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database URL is required")
	}
	if _, err := pgxpool.ParseConfig(cfg.URL); err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database URL").Wrap(err)
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	initial := cfg.Backoff
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	backoff := retry.NewExponential(initial)
	backoff = retry.WithCappedDuration(maxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff) //nolint:gosec // attempts >= 1

	var (
		pool    *pgxpool.Pool
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := open(ctx, cfg.URL)
		if err != nil {
			slog.WarnContext(ctx, "database not reachable",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}

func openPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, oops.With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.With("operation", "ping").Wrap(err)
	}
	return pool, nil
}
