// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/userauth/internal/config"
	"github.com/holomush/userauth/internal/store"
)

// migrator is the subset of store.Migrator the CLI drives.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

type migratorFactory func(databaseURL string) (migrator, error)

// newMigrator opens a store.Migrator. Replaced in tests.
var newMigrator migratorFactory = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, newMigrator, runMigrateUp)
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (default: $"+config.DatabaseURLEnv+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, newMigrator, runMigrateUp)
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all users)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all users; pass --yes to confirm")
			}
			return withMigrator(cmd, newMigrator, runMigrateDown)
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, newMigrator, runMigrateStatus)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, newMigrator, runMigrateVersion)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long:  `Record VERSION as the applied migration and clear the dirty flag. Use after fixing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, newMigrator, func(cmd *cobra.Command, m migrator) error {
				if err := m.Force(v); err != nil {
					return err //nolint:wrapcheck // already coded
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// migrationURL resolves the database URL for migrate subcommands.
func migrationURL(cmd *cobra.Command) (string, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return "", err //nolint:wrapcheck // config errors are already coded
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return "", oops.Code("CONFIG_INVALID").
			With("field", "store.driver").
			Errorf("migrations require the %s store, configured %q", config.DriverPostgres, cfg.Store.Driver)
	}
	return cfg.Store.DatabaseURL, nil
}

func withMigrator(cmd *cobra.Command, factory migratorFactory, fn func(*cobra.Command, migrator) error) error {
	url, err := migrationURL(cmd)
	if err != nil {
		return err
	}
	m, err := factory(url)
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return fn(cmd, m)
}

func runMigrateUp(cmd *cobra.Command, m migrator) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	v, _, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", v)
	return nil
}

func runMigrateDown(cmd *cobra.Command, m migrator) error {
	if err := m.Down(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	cmd.Println("All migrations rolled back")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, m migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	if dirty {
		cmd.Printf("%d (dirty)\n", v)
		return nil
	}
	cmd.Printf("%d\n", v)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // already coded
	}

	state := "clean"
	if dirty {
		state = "DIRTY (fix by hand, then run migrate force)"
	}
	cmd.Printf("Version: %d (%s)\n", v, state)
	printMigrations(cmd, "Applied", applied)
	printMigrations(cmd, "Pending", pending)
	return nil
}

func printMigrations(cmd *cobra.Command, title string, versions []uint) {
	if len(versions) == 0 {
		cmd.Printf("%s: none\n", title)
		return
	}
	cmd.Printf("%s:\n", title)
	for _, v := range versions {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		cmd.Printf("  %s\n", name)
	}
}

// autoMigrate applies pending migrations at startup.
func autoMigrate(databaseURL string, factory migratorFactory) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	v, _, err := m.Version()
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	slog.Info("database migrations applied", "version", v)
	return nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var v int
	if _, err := fmt.Sscanf(trimmed, "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}
