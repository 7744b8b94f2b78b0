package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lawnchairsociety/questgraph/internal/database/migrations"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/pressly/goose/v3"
)

// goose keeps its dialect and filesystem in package state
var gooseMu sync.Mutex

// gooseLogger routes goose output through the application logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// migrate applies the embedded migrations for the database's dialect.
func (d *Database) migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(d.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.db, d.dialect.MigrationsDir()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the version of the last applied migration.
func (d *Database) SchemaVersion() (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(d.dialect.GooseDialect()); err != nil {
		return 0, fmt.Errorf("setting goose dialect: %w", err)
	}
	version, err := goose.GetDBVersion(d.db)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
