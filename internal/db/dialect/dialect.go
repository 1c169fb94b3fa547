// Package dialect provides SQL fragment helpers for SQLite/PostgreSQL portability.
package dialect

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres returns true if the driver is PostgreSQL (pgx).
func IsPostgres(driver string) bool {
	return driver == PGX
}

// InsertionOrder returns the column expression that orders rows by
// insertion. SQLite tables carry an implicit rowid; the Postgres schema
// declares an explicit seq bigserial.
func InsertionOrder(driver string) string {
	if IsPostgres(driver) {
		return "seq"
	}
	return "rowid"
}

// ForUpdate returns the row-locking clause for read-modify-write
// transactions. SQLite serializes through its single writer connection
// and rejects FOR UPDATE, so the clause is empty there.
func ForUpdate(driver string) string {
	if IsPostgres(driver) {
		return " FOR UPDATE"
	}
	return ""
}
