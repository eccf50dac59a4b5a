package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type StressStore interface {
	SaveRun(ctx context.Context, run *StressRun, scenarios []TestScenario) error
	LatestRun(ctx context.Context, extensionID string) (*StressRun, error)
	ListScenarios(ctx context.Context, runID int64) ([]TestScenario, error)
	CountScenariosByOutcome(ctx context.Context) (map[Outcome]int, error)
}

type stressStore struct {
	db *sql.DB
}

func NewStressStore(db *sql.DB) StressStore {
	return &stressStore{db: db}
}

func (s *stressStore) SaveRun(ctx context.Context, run *StressRun, scenarios []TestScenario) error {
	if run == nil {
		return errors.New("nil stress run")
	}
	cfg := run.ConfigJSON
	if cfg == "" {
		cfg = "{}"
	}
	now := time.Now().UTC()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var runID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO stress_runs(extension_id, total, passed, warning, failed, avg_performance, config_json, created_at)
			VALUES(?,?,?,?,?,?,?,?) RETURNING id
		`, run.ExtensionID, run.Total, run.Passed, run.Warning, run.Failed, run.AvgPerformance, cfg, now).Scan(&runID); err != nil {
			return err
		}
		for i := range scenarios {
			sc := &scenarios[i]
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO test_scenarios(
					run_id, extension_id, test_type, device, resolution, network, outcome,
					duration_ms, memory_mb, cpu_percent, render_ms, error_count,
					crash_detected, memory_leak, performance_score, error, created_at
				)
				VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id
			`, runID, run.ExtensionID, sc.TestType, sc.Device, sc.Resolution, sc.Network, string(sc.Outcome),
				sc.DurationMS, sc.MemoryMB, sc.CPUPercent, sc.RenderMS, sc.ErrorCount,
				sc.CrashDetected, sc.MemoryLeak, sc.PerformanceScore, sc.Error, now).Scan(&sc.ID); err != nil {
				return err
			}
			sc.RunID = runID
			sc.ExtensionID = run.ExtensionID
			sc.CreatedAt = now
		}
		run.ID = runID
		run.CreatedAt = now
		return nil
	})
	return persistErr("save stress run", err)
}

func (s *stressStore) LatestRun(ctx context.Context, extensionID string) (*StressRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, extension_id, total, passed, warning, failed, avg_performance, config_json, created_at
		FROM stress_runs WHERE extension_id=? ORDER BY id DESC LIMIT 1`, extensionID)
	var r StressRun
	if err := row.Scan(&r.ID, &r.ExtensionID, &r.Total, &r.Passed, &r.Warning, &r.Failed, &r.AvgPerformance, &r.ConfigJSON, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *stressStore) ListScenarios(ctx context.Context, runID int64) ([]TestScenario, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, extension_id, test_type, device, resolution, network, outcome,
			duration_ms, memory_mb, cpu_percent, render_ms, error_count,
			crash_detected, memory_leak, performance_score, error, created_at
		FROM test_scenarios WHERE run_id=? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []TestScenario{}
	for rows.Next() {
		var (
			sc      TestScenario
			outcome string
		)
		if err := rows.Scan(&sc.ID, &sc.RunID, &sc.ExtensionID, &sc.TestType, &sc.Device, &sc.Resolution, &sc.Network, &outcome,
			&sc.DurationMS, &sc.MemoryMB, &sc.CPUPercent, &sc.RenderMS, &sc.ErrorCount,
			&sc.CrashDetected, &sc.MemoryLeak, &sc.PerformanceScore, &sc.Error, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.Outcome = Outcome(outcome)
		res = append(res, sc)
	}
	return res, rows.Err()
}

func (s *stressStore) CountScenariosByOutcome(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM test_scenarios GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[Outcome]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[Outcome(outcome)] = n
	}
	return out, rows.Err()
}
