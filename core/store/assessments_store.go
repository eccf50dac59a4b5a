package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type AssessmentsStore interface {
	Insert(ctx context.Context, a *RiskAssessment) error
	Latest(ctx context.Context, extensionID string) (*RiskAssessment, error)
	// LatestPerExtension returns the newest assessment of every assessed extension.
	LatestPerExtension(ctx context.Context) ([]RiskAssessment, error)
}

type assessmentsStore struct {
	db *sql.DB
}

func NewAssessmentsStore(db *sql.DB) AssessmentsStore {
	return &assessmentsStore{db: db}
}

const assessmentColumns = `id, extension_id, security, stability, performance, compatibility, overall, level, details_json, created_at`

func (s *assessmentsStore) Insert(ctx context.Context, a *RiskAssessment) error {
	if a == nil {
		return errors.New("nil assessment")
	}
	details, err := json.Marshal(a.Details)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO risk_assessments(extension_id, security, stability, performance, compatibility, overall, level, details_json, created_at)
		VALUES(?,?,?,?,?,?,?,?,?) RETURNING id
	`, a.ExtensionID, a.Security, a.Stability, a.Performance, a.Compatibility, a.Overall, string(a.Level), string(details), now).Scan(&id)
	if err != nil {
		return persistErr("insert risk assessment", err)
	}
	a.ID = id
	a.CreatedAt = now
	return nil
}

func (s *assessmentsStore) Latest(ctx context.Context, extensionID string) (*RiskAssessment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM risk_assessments WHERE extension_id=? ORDER BY id DESC LIMIT 1`, extensionID)
	a, err := scanAssessment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (s *assessmentsStore) LatestPerExtension(ctx context.Context) ([]RiskAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assessmentColumns+` FROM risk_assessments r
		WHERE r.id = (SELECT MAX(id) FROM risk_assessments WHERE extension_id=r.extension_id)
		ORDER BY r.extension_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []RiskAssessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}
	return res, rows.Err()
}

func scanAssessment(row interface{ Scan(dest ...any) error }) (*RiskAssessment, error) {
	var (
		a          RiskAssessment
		level, raw string
	)
	if err := row.Scan(&a.ID, &a.ExtensionID, &a.Security, &a.Stability, &a.Performance, &a.Compatibility, &a.Overall, &level, &raw, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Level = RiskLevel(level)
	if raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &a.Details); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
