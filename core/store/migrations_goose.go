package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"extgov/core/utils"
	"github.com/pressly/goose/v3"
)

//go:embed migrations_pg/*.sql migrations_sqlite/*.sql
var gooseMigrationsFS embed.FS

const gooseTable = "goose_db_version"

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

func migrationsDir(dialect string) string {
	if dialect == DialectSQLite {
		return "migrations_sqlite"
	}
	return "migrations_pg"
}

func gooseDialect(dialect string) string {
	if dialect == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	dialect, err := Dialect(ctx, db)
	if err != nil {
		return err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(gooseDialect(dialect)); err != nil {
		return err
	}
	goose.SetBaseFS(gooseMigrationsFS)
	goose.SetTableName(gooseTable)
	if logger != nil {
		goose.SetLogger(logger)
		logger.Printf("applying goose migrations (%s)", dialect)
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.UpContext(ctx, db, migrationsDir(dialect)); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("goose migrations applied")
	}
	return nil
}
