// Package dbtest provides migrated SQLite databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"expense_tracker/internal/config"
	"expense_tracker/internal/db"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Config returns a SQLite configuration backed by a file in t's temp dir.
func Config(t testing.TB) config.DBConfig {
	t.Helper()
	return config.DBConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "expenses.db"),
	}
}

// NewSQLite opens a freshly migrated database that is closed when t ends.
func NewSQLite(t testing.TB) (*sqlx.DB, config.DBConfig) {
	t.Helper()
	cfg := Config(t)

	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, db.Migrate(cfg), "failed to migrate test database")

	t.Cleanup(func() { conn.Close() })
	return conn, cfg
}
