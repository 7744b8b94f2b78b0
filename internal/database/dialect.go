package database

// Dialect abstracts the SQL differences between SQLite and PostgreSQL.
type Dialect interface {
	// DriverName returns the driver name for sql.Open().
	// SQLite: "sqlite", PostgreSQL: "postgres" (lib/pq) or "pgx"
	DriverName() string

	// GooseDialect returns the dialect name goose uses for migrations.
	GooseDialect() string

	// MigrationsDir returns the directory of the embedded migrations for this dialect.
	MigrationsDir() string

	// Placeholder returns the parameter placeholder for the given position (1-indexed).
	// SQLite: "?" (ignores position), PostgreSQL: "$1", "$2", etc.
	Placeholder(position int) string

	// DSN returns the connection string sql.Open() takes for cfg.
	DSN(cfg Config) string

	// IsDuplicateKeyError returns true if the error is a unique constraint violation.
	IsDuplicateKeyError(err error) bool
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
	DialectPgx      DialectType = "pgx"
)

// NewDialect creates a new Dialect for the given type.
func NewDialect(dialectType DialectType) Dialect {
	switch dialectType {
	case DialectPostgres:
		return &PostgresDialect{driver: "postgres"}
	case DialectPgx:
		return &PostgresDialect{driver: "pgx"}
	default:
		return &SQLiteDialect{}
	}
}
