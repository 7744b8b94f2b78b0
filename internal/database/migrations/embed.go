// Package migrations holds the embedded goose migrations, one directory per dialect.
package migrations

import "embed"

// FS contains the SQLite and PostgreSQL migrations.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
