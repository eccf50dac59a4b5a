package store

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"strings"

	"extgov/config"
	"extgov/core/utils"
	_ "modernc.org/sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "" {
		switch {
		case strings.TrimSpace(cfg.DBURL) != "":
			driver = DialectPostgres
		case strings.TrimSpace(cfg.DBPath) != "":
			driver = DialectSQLite
		default:
			driver = DialectPostgres
		}
	}
	switch driver {
	case "postgres", "pg":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, errors.New("EXTGOV_DB_URL is required for postgres")
		}
		db, err := sql.Open(postgresDriverName, cfg.DBURL)
		if err != nil {
			if logger != nil {
				logger.Errorf("db open failed: %v", err)
			}
			return nil, err
		}
		if logger != nil {
			logger.Printf("db open postgres")
		}
		return db, nil
	case DialectSQLite:
		if !cfg.IsDev() && !isTestRuntime() {
			return nil, errors.New("sqlite driver is supported only in dev or go test runtime")
		}
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, errors.New("EXTGOV_DB_PATH is required for sqlite")
		}
		db, err := sql.Open("sqlite", sqliteDSN(cfg.DBPath))
		if err != nil {
			if logger != nil {
				logger.Errorf("db open failed: %v", err)
			}
			return nil, err
		}
		// One writer at a time; busy_timeout covers the rest.
		db.SetMaxOpenConns(1)
		if logger != nil {
			logger.Printf("db open sqlite (%s)", cfg.DBPath)
		}
		return db, nil
	default:
		return nil, errors.New("unsupported db driver: " + driver)
	}
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Dialect reports which backend db talks to.
func Dialect(ctx context.Context, db *sql.DB) (string, error) {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return "", err
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return DialectSQLite, nil
	}
	return DialectPostgres, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isTestRuntime() bool {
	return flag.Lookup("test.v") != nil
}
