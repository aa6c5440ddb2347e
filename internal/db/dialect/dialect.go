// Package dialect holds the SQL differences between SQLite and PostgreSQL
// that the board document table needs.
package dialect

import "fmt"

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres returns true if the driver is PostgreSQL (pgx).
func IsPostgres(driver string) bool {
	return driver == PGX
}

// DocumentType is the column type used to hold a JSON board document.
//
//	SQLite:   TEXT
//	Postgres: JSONB
func DocumentType(driver string) string {
	if IsPostgres(driver) {
		return "JSONB"
	}
	return "TEXT"
}

// DocumentParam wraps a bind placeholder so a JSON string can be stored in
// the document column.
//
//	SQLite:   ?
//	Postgres: ?::jsonb
func DocumentParam(driver string) string {
	if IsPostgres(driver) {
		return "?::jsonb"
	}
	return "?"
}

// DocumentSelect returns the expression reading the document column back as
// text.
func DocumentSelect(driver, column string) string {
	if IsPostgres(driver) {
		return fmt.Sprintf("%s::text", column)
	}
	return column
}
