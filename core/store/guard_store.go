package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type GuardStore interface {
	Get(ctx context.Context, extensionID string) (*GuardRecord, error)
	// CompareAndSet writes rec only if the stored version still equals
	// expected (0 means no record yet). On success rec.Version is expected+1.
	CompareAndSet(ctx context.Context, rec *GuardRecord, expected int64) (bool, error)
	CountBlocked(ctx context.Context) (int, error)
}

type guardStore struct {
	db *sql.DB
}

func NewGuardStore(db *sql.DB) GuardStore {
	return &guardStore{db: db}
}

func (s *guardStore) Get(ctx context.Context, extensionID string) (*GuardRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT extension_id, blocked, reason, admin_override_required, risk_score, threshold, assessment_id, version, updated_at
		FROM guard_records WHERE extension_id=?`, extensionID)
	var r GuardRecord
	if err := row.Scan(&r.ExtensionID, &r.Blocked, &r.Reason, &r.AdminOverrideRequired, &r.RiskScore, &r.Threshold, &r.AssessmentID, &r.Version, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *guardStore) CompareAndSet(ctx context.Context, rec *GuardRecord, expected int64) (bool, error) {
	if rec == nil {
		return false, errors.New("nil guard record")
	}
	now := time.Now().UTC()
	next := expected + 1
	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO guard_records(extension_id, blocked, reason, admin_override_required, risk_score, threshold, assessment_id, version, updated_at)
			VALUES(?,?,?,?,?,?,?,?,?)
			ON CONFLICT(extension_id) DO NOTHING
		`, rec.ExtensionID, rec.Blocked, rec.Reason, rec.AdminOverrideRequired, rec.RiskScore, rec.Threshold, rec.AssessmentID, next, now)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE guard_records
			SET blocked=?, reason=?, admin_override_required=?, risk_score=?, threshold=?, assessment_id=?, version=?, updated_at=?
			WHERE extension_id=? AND version=?
		`, rec.Blocked, rec.Reason, rec.AdminOverrideRequired, rec.RiskScore, rec.Threshold, rec.AssessmentID, next, now, rec.ExtensionID, expected)
	}
	if err != nil {
		return false, persistErr("write guard record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	rec.Version = next
	rec.UpdatedAt = now
	return true, nil
}

func (s *guardStore) CountBlocked(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM guard_records WHERE blocked=?`, true).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
