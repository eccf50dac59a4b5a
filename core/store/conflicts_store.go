package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type ConflictsStore interface {
	// SaveRun persists run and its conflicts atomically and assigns IDs.
	SaveRun(ctx context.Context, run *ConflictRun, conflicts []Conflict) error
	LatestRun(ctx context.Context) (*ConflictRun, error)
	ListByRun(ctx context.Context, runID int64) ([]Conflict, error)
	ListForExtension(ctx context.Context, runID int64, extensionID string) ([]Conflict, error)
}

type conflictsStore struct {
	db *sql.DB
}

func NewConflictsStore(db *sql.DB) ConflictsStore {
	return &conflictsStore{db: db}
}

const conflictColumns = `id, run_id, extension_a, extension_b, kind, severity, resources_json, suggestion, created_at`

func (s *conflictsStore) SaveRun(ctx context.Context, run *ConflictRun, conflicts []Conflict) error {
	if run == nil {
		return errors.New("nil conflict run")
	}
	byKind, err := json.Marshal(run.ByKind)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var runID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO conflict_runs(snapshot_hash, extension_count, total, by_kind_json, created_at)
			VALUES(?,?,?,?,?) RETURNING id
		`, run.SnapshotHash, run.ExtensionCount, run.Total, string(byKind), now).Scan(&runID); err != nil {
			return err
		}
		for i := range conflicts {
			c := &conflicts[i]
			resources, err := json.Marshal(c.Resources)
			if err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO conflicts(run_id, extension_a, extension_b, kind, severity, resources_json, suggestion, created_at)
				VALUES(?,?,?,?,?,?,?,?) RETURNING id
			`, runID, c.ExtensionA, c.ExtensionB, string(c.Kind), string(c.Severity), string(resources), c.Suggestion, now).Scan(&c.ID); err != nil {
				return err
			}
			c.RunID = runID
			c.CreatedAt = now
		}
		run.ID = runID
		run.CreatedAt = now
		return nil
	})
	return persistErr("save conflict run", err)
}

func (s *conflictsStore) LatestRun(ctx context.Context) (*ConflictRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, snapshot_hash, extension_count, total, by_kind_json, created_at
		FROM conflict_runs ORDER BY id DESC LIMIT 1`)
	var (
		run ConflictRun
		raw string
	)
	if err := row.Scan(&run.ID, &run.SnapshotHash, &run.ExtensionCount, &run.Total, &raw, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	run.ByKind = map[ConflictKind]int{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &run.ByKind); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

func (s *conflictsStore) ListByRun(ctx context.Context, runID int64) ([]Conflict, error) {
	return s.list(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE run_id=? ORDER BY id ASC`, runID)
}

func (s *conflictsStore) ListForExtension(ctx context.Context, runID int64, extensionID string) ([]Conflict, error) {
	return s.list(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE run_id=? AND (extension_a=? OR extension_b=?) ORDER BY id ASC`,
		runID, extensionID, extensionID)
}

func (s *conflictsStore) list(ctx context.Context, query string, args ...any) ([]Conflict, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Conflict{}
	for rows.Next() {
		var (
			c              Conflict
			kind, severity string
			raw            string
		)
		if err := rows.Scan(&c.ID, &c.RunID, &c.ExtensionA, &c.ExtensionB, &kind, &severity, &raw, &c.Suggestion, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Kind = ConflictKind(kind)
		c.Severity = Severity(severity)
		if err := json.Unmarshal([]byte(raw), &c.Resources); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
