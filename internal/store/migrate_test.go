// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/userauth/pkg/errutil"
)

// mockMigrate implements migrateIface for testing.
type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/app":   "pgx5://u:p@db:5432/app",
		"postgresql://u:p@db:5432/app": "pgx5://u:p@db:5432/app",
		"pgx5://db/app":                "pgx5://db/app",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrator_DirectionalOperations(t *testing.T) {
	failure := errors.New("database locked")

	tests := []struct {
		name     string
		mock     *mockMigrate
		run      func(*Migrator) error
		wantCode string
	}{
		{name: "up", mock: &mockMigrate{}, run: (*Migrator).Up},
		{name: "up no change", mock: &mockMigrate{upErr: migrate.ErrNoChange}, run: (*Migrator).Up},
		{name: "up failure", mock: &mockMigrate{upErr: failure}, run: (*Migrator).Up, wantCode: "MIGRATION_UP_FAILED"},
		{name: "down", mock: &mockMigrate{}, run: (*Migrator).Down},
		{name: "down no change", mock: &mockMigrate{downErr: migrate.ErrNoChange}, run: (*Migrator).Down},
		{name: "down failure", mock: &mockMigrate{downErr: failure}, run: (*Migrator).Down, wantCode: "MIGRATION_DOWN_FAILED"},
		{name: "steps", mock: &mockMigrate{}, run: func(m *Migrator) error { return m.Steps(1) }},
		{name: "steps zero", mock: &mockMigrate{stepsErr: migrate.ErrNoChange}, run: func(m *Migrator) error { return m.Steps(0) }},
		{name: "steps failure", mock: &mockMigrate{stepsErr: failure}, run: func(m *Migrator) error { return m.Steps(-1) }, wantCode: "MIGRATION_STEPS_FAILED"},
		{name: "force", mock: &mockMigrate{}, run: func(m *Migrator) error { return m.Force(1) }},
		{name: "force failure", mock: &mockMigrate{forceErr: failure}, run: func(m *Migrator) error { return m.Force(1) }, wantCode: "MIGRATION_FORCE_FAILED"},
		{name: "force negative", mock: &mockMigrate{}, run: func(m *Migrator) error { return m.Force(-1) }, wantCode: "INVALID_VERSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.mock})
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
		assert.True(t, dirty)
	})

	t.Run("empty database", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}
		_, _, err := m.Version()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Close(t *testing.T) {
	srcErr := errors.New("source close failed")
	dbErr := errors.New("db close failed")

	tests := []struct {
		name          string
		mock          *mockMigrate
		wantComponent string
	}{
		{name: "clean", mock: &mockMigrate{}},
		{name: "source", mock: &mockMigrate{closeSourceErr: srcErr}, wantComponent: "source"},
		{name: "database", mock: &mockMigrate{closeDBErr: dbErr}, wantComponent: "database"},
		{name: "both", mock: &mockMigrate{closeSourceErr: srcErr, closeDBErr: dbErr}, wantComponent: "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Migrator{m: tt.mock}).Close()
			if tt.wantComponent == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.wantComponent)
		})
	}
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	tests := []struct {
		name        string
		mock        *mockMigrate
		wantPending []uint
		wantApplied []uint
	}{
		{name: "fresh database", mock: &mockMigrate{versionErr: migrate.ErrNilVersion}, wantPending: []uint{1, 2}},
		{name: "partially applied", mock: &mockMigrate{versionVal: 1}, wantPending: []uint{2}, wantApplied: []uint{1}},
		{name: "latest", mock: &mockMigrate{versionVal: 2}, wantApplied: []uint{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: tt.mock}

			pending, err := m.PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.wantPending, pending)

			applied, err := m.AppliedMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.wantApplied, applied)
		})
	}
}

func TestMigrator_PendingAndAppliedPropagateVersionErrors(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}

	_, err := m.PendingMigrations()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "get pending migrations")

	_, err = m.AppliedMigrations()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "get applied migrations")
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_create_users", name)

	name, err = MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_user_token_indexes", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestAllMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := allMigrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0] = 999

	second, err := allMigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}
