// Package stress runs an extension through the test matrix on a bounded
// worker pool and records one scenario per cell.
package stress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"extgov/core/store"
	"extgov/core/utils"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Parallelism int
	Timeout     time.Duration
}

type Runner struct {
	exec        Executor
	store       store.StressStore
	parallelism int
	timeout     time.Duration
	logger      *utils.Logger
}

func NewRunner(exec Executor, st store.StressStore, opts Options, logger *utils.Logger) *Runner {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Runner{exec: exec, store: st, parallelism: opts.Parallelism, timeout: opts.Timeout, logger: logger}
}

type Report struct {
	RunID          int64                `json:"run_id"`
	ExtensionID    string               `json:"extension_id"`
	Total          int                  `json:"total"`
	Passed         int                  `json:"passed"`
	Warning        int                  `json:"warning"`
	Failed         int                  `json:"failed"`
	AvgPerformance int                  `json:"avg_performance"`
	Scenarios      []store.TestScenario `json:"scenarios"`
}

// Run executes every cell of m. A cell that fails or times out is recorded
// as failed and never stops the others; only ctx ending aborts the run.
func (r *Runner) Run(ctx context.Context, ext store.Extension, m MatrixConfig) (Report, error) {
	if m.Size() == 0 {
		return Report{}, fmt.Errorf("%w: empty matrix", ErrInvalidMatrix)
	}
	var (
		mu        sync.Mutex
		scenarios = make([]indexedScenario, 0, m.Size())
		g         errgroup.Group
	)
	g.SetLimit(r.parallelism)
	m.Each(func(cell Cell) bool {
		if ctx.Err() != nil {
			return false
		}
		g.Go(func() error {
			sc := r.runCell(ctx, ext, cell)
			mu.Lock()
			scenarios = append(scenarios, indexedScenario{index: cell.Index, scenario: sc})
			mu.Unlock()
			return nil
		})
		return true
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].index < scenarios[j].index })
	rep := Report{ExtensionID: ext.ID, Scenarios: make([]store.TestScenario, 0, len(scenarios))}
	perfSum := 0
	for _, s := range scenarios {
		rep.Scenarios = append(rep.Scenarios, s.scenario)
		perfSum += s.scenario.PerformanceScore
		switch s.scenario.Outcome {
		case store.OutcomePassed:
			rep.Passed++
		case store.OutcomeWarning:
			rep.Warning++
		case store.OutcomeFailed:
			rep.Failed++
		}
	}
	rep.Total = len(rep.Scenarios)
	rep.AvgPerformance = int(math.Round(float64(perfSum) / float64(rep.Total)))

	cfg, err := json.Marshal(m)
	if err != nil {
		return Report{}, fmt.Errorf("encode matrix: %w", err)
	}
	run := &store.StressRun{
		ExtensionID:    ext.ID,
		Total:          rep.Total,
		Passed:         rep.Passed,
		Warning:        rep.Warning,
		Failed:         rep.Failed,
		AvgPerformance: rep.AvgPerformance,
		ConfigJSON:     string(cfg),
	}
	if r.store != nil {
		if err := r.store.SaveRun(ctx, run, rep.Scenarios); err != nil {
			return Report{}, err
		}
	}
	rep.RunID = run.ID
	if r.logger != nil {
		r.logger.Printf("stress: %s run %d: %d passed, %d warning, %d failed", ext.Name, run.ID, rep.Passed, rep.Warning, rep.Failed)
	}
	return rep, nil
}

type indexedScenario struct {
	index    int
	scenario store.TestScenario
}

type cellResult struct {
	m   Measurement
	err error
}

func (r *Runner) runCell(ctx context.Context, ext store.Extension, cell Cell) store.TestScenario {
	sc := store.TestScenario{
		ExtensionID: ext.ID,
		TestType:    string(cell.TestType),
		Device:      string(cell.Device),
		Resolution:  cell.Device.Resolution().String(),
		Network:     string(cell.Network),
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	done := make(chan cellResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- cellResult{err: fmt.Errorf("executor panic: %v", p)}
			}
		}()
		m, err := r.exec.Execute(cctx, ext, cell)
		done <- cellResult{m: m, err: err}
	}()

	var res cellResult
	select {
	case res = <-done:
	case <-cctx.Done():
		res = cellResult{err: cctx.Err()}
	}
	if res.err != nil {
		sc.Outcome = store.OutcomeFailed
		sc.DurationMS = time.Since(started).Milliseconds()
		sc.ErrorCount = 1
		sc.Error = res.err.Error()
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			sc.Error = ErrScenarioTimeout.Error()
			sc.DurationMS = r.timeout.Milliseconds()
		}
		return sc
	}
	m := res.m
	sc.DurationMS = m.Duration.Milliseconds()
	sc.MemoryMB = m.MemoryMB
	sc.CPUPercent = m.CPUPercent
	sc.RenderMS = m.RenderMS
	sc.ErrorCount = m.ErrorCount
	sc.CrashDetected = m.Crash
	sc.MemoryLeak = m.MemoryLeak
	sc.PerformanceScore = clamp(m.PerformanceScore, 0, 100)
	sc.Outcome = Classify(m)

	// Executors replay on virtual time, so the limit covers the simulated
	// duration as well as the wall clock spent executing.
	if total := m.Duration + time.Since(started); total > r.timeout {
		sc.Outcome = store.OutcomeFailed
		sc.Error = ErrScenarioTimeout.Error()
		sc.ErrorCount++
		sc.DurationMS = total.Milliseconds()
	}
	return sc
}
