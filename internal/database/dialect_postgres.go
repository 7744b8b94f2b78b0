package database

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for PostgreSQL, through either lib/pq or pgx.
type PostgresDialect struct {
	driver string
}

// DriverName returns "postgres" for lib/pq or "pgx" for the pgx stdlib driver.
func (d *PostgresDialect) DriverName() string {
	if d.driver == "" {
		return "postgres"
	}
	return d.driver
}

func (d *PostgresDialect) GooseDialect() string {
	return "postgres"
}

func (d *PostgresDialect) MigrationsDir() string {
	return "postgres"
}

// Placeholder returns "$N" for the given position (PostgreSQL uses numbered placeholders).
func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (d *PostgresDialect) DSN(cfg Config) string {
	return cfg.Postgres.DSN()
}

// IsDuplicateKeyError returns true if the error is a PostgreSQL unique violation.
func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// PostgreSQL error code 23505 is unique_violation
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint")
}
