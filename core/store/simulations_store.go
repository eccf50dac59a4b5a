package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type SimulationsStore interface {
	SaveRun(ctx context.Context, run *SimulationRun, steps []SimulationStep) error
	GetRun(ctx context.Context, id int64) (*SimulationRun, error)
	ListSteps(ctx context.Context, runID int64) ([]SimulationStep, error)
}

type simulationsStore struct {
	db *sql.DB
}

func NewSimulationsStore(db *sql.DB) SimulationsStore {
	return &simulationsStore{db: db}
}

func (s *simulationsStore) SaveRun(ctx context.Context, run *SimulationRun, steps []SimulationStep) error {
	if run == nil {
		return errors.New("nil simulation run")
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var runID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO simulation_runs(extension_id, device, network, ux_score, step_count, summary_json, created_at)
			VALUES(?,?,?,?,?,?,?) RETURNING id
		`, run.ExtensionID, run.Device, run.Network, run.UXScore, len(steps), string(summary), now).Scan(&runID); err != nil {
			return err
		}
		for i := range steps {
			st := &steps[i]
			meta, err := json.Marshal(st.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO simulation_steps(run_id, step_number, action, target, x, y, duration_ms, success, error, metadata_json)
				VALUES(?,?,?,?,?,?,?,?,?,?)
			`, runID, st.StepNumber, st.Action, st.Target, nullableInt(st.X), nullableInt(st.Y), st.DurationMS, st.Success, st.Error, string(meta)); err != nil {
				return err
			}
			st.RunID = runID
		}
		run.ID = runID
		run.StepCount = len(steps)
		run.CreatedAt = now
		return nil
	})
	return persistErr("save simulation run", err)
}

func (s *simulationsStore) GetRun(ctx context.Context, id int64) (*SimulationRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, extension_id, device, network, ux_score, step_count, summary_json, created_at
		FROM simulation_runs WHERE id=?`, id)
	var (
		r   SimulationRun
		raw string
	)
	if err := row.Scan(&r.ID, &r.ExtensionID, &r.Device, &r.Network, &r.UXScore, &r.StepCount, &raw, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &r.Summary); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *simulationsStore) ListSteps(ctx context.Context, runID int64) ([]SimulationStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step_number, action, target, x, y, duration_ms, success, error, metadata_json
		FROM simulation_steps WHERE run_id=? ORDER BY step_number ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []SimulationStep{}
	for rows.Next() {
		var (
			st   SimulationStep
			x, y sql.NullInt64
			raw  string
		)
		if err := rows.Scan(&st.RunID, &st.StepNumber, &st.Action, &st.Target, &x, &y, &st.DurationMS, &st.Success, &st.Error, &raw); err != nil {
			return nil, err
		}
		st.X = intPtr(x)
		st.Y = intPtr(y)
		if raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &st.Metadata); err != nil {
				return nil, err
			}
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
