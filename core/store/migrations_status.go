package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"
)

type MigrationStatus struct {
	NowUTC time.Time `json:"now_utc"`

	Dialect        string `json:"dialect"`
	HasGooseTable  bool   `json:"has_goose_table"`
	CurrentVersion int64  `json:"current_version"`
	LatestVersion  int64  `json:"latest_version"`
	HasPending     bool   `json:"has_pending"`
}

func GetMigrationStatus(ctx context.Context, db *sql.DB) (MigrationStatus, error) {
	now := time.Now().UTC()
	if db == nil {
		return MigrationStatus{NowUTC: now}, fmt.Errorf("nil db")
	}
	dialect, err := Dialect(ctx, db)
	if err != nil {
		return MigrationStatus{NowUTC: now}, err
	}
	latest, err := latestMigrationVersion(dialect)
	if err != nil {
		return MigrationStatus{NowUTC: now, Dialect: dialect}, err
	}
	st := MigrationStatus{NowUTC: now, Dialect: dialect, LatestVersion: latest}
	hasGoose, err := tableExists(ctx, db, dialect, gooseTable)
	if err != nil {
		return st, err
	}
	st.HasGooseTable = hasGoose
	if hasGoose {
		if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version_id), 0) FROM `+gooseTable).Scan(&st.CurrentVersion); err != nil {
			return st, err
		}
	}
	st.HasPending = st.LatestVersion > st.CurrentVersion
	return st, nil
}

func tableExists(ctx context.Context, db *sql.DB, dialect, name string) (bool, error) {
	q := `SELECT COUNT(1) FROM information_schema.tables WHERE table_schema='public' AND table_name=?`
	if dialect == DialectSQLite {
		q = `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`
	}
	var n int
	if err := db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func latestMigrationVersion(dialect string) (int64, error) {
	entries, err := fs.Glob(gooseMigrationsFS, migrationsDir(dialect)+"/*.sql")
	if err != nil {
		return 0, err
	}
	var max int64
	for _, p := range entries {
		// 00001_governance.sql
		prefix, _, _ := strings.Cut(path.Base(p), "_")
		n, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}
