package db

import (
	"errors"
	"fmt"

	"expense_tracker/internal/config"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a UNIQUE constraint on either driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}

// MonthKeyExpr renders column (a UTC timestamp) as a YYYY-MM string.
// SQLite stores timestamps as UTC text, so the key is the leading seven characters.
func MonthKeyExpr(driver, column string) string {
	if driver == config.DriverSQLite {
		return fmt.Sprintf("substr(%s, 1, 7)", column)
	}
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM')", column)
}
