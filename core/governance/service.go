// Package governance exposes the extension governance operations: scan,
// analyze, stress test, conflict check, risk assessment, simulation and
// guard evaluation. Every call that changes state leaves an audit entry.
package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"extgov/config"
	"extgov/core/conflicts"
	"extgov/core/guard"
	"extgov/core/registry"
	"extgov/core/risk"
	"extgov/core/scanner"
	"extgov/core/simulator"
	"extgov/core/store"
	"extgov/core/stress"
	"extgov/core/utils"
)

// SystemActor is recorded in the audit log for calls without a caller name.
const SystemActor = "system"

type Components struct {
	Registry    *registry.Registry
	Scanner     *scanner.Scanner
	Conflicts   *conflicts.Service
	Stress      *stress.Runner
	Matrix      stress.MatrixConfig
	Scorer      *risk.Scorer
	Guard       *guard.Guard
	Simulator   *simulator.Simulator
	// Base settings for simulators built from a per-call SimulationConfig.
	SimDelays   config.DelayConfig
	SimRandom   simulator.RandomSource
	Simulations store.SimulationsStore
	Audit       store.AuditStore
}

type Service struct {
	c      Components
	logger *utils.Logger
}

func New(c Components, logger *utils.Logger) *Service {
	if c.Matrix.Size() == 0 {
		c.Matrix = stress.DefaultMatrix()
	}
	return &Service{c: c, logger: logger}
}

func (s *Service) Threshold() int {
	return s.c.Guard.Threshold()
}

func (s *Service) Scan(ctx context.Context, actor string) (scanner.Result, error) {
	if s.c.Scanner == nil {
		return scanner.Result{}, classify(fmt.Errorf("%w: no extension source configured", ErrInvalidInput))
	}
	res, err := s.c.Scanner.Scan(ctx)
	if err != nil {
		return res, classify(err)
	}
	s.audit(ctx, actor, "extensions.scan", map[string]any{
		"scanned": res.Scanned, "registered": res.Registered, "updated": res.Updated, "errors": len(res.Errors),
	})
	return res, nil
}

func (s *Service) RegisterExtension(ctx context.Context, actor string, ext store.Extension) (store.Extension, bool, error) {
	out, created, err := s.c.Registry.Register(ctx, ext)
	if err != nil {
		return store.Extension{}, false, classify(err)
	}
	s.audit(ctx, actor, "extension.register", map[string]any{"id": out.ID, "name": out.Name, "created": created})
	return out, created, nil
}

func (s *Service) GetExtension(ctx context.Context, id string) (store.Extension, error) {
	ext, err := s.c.Registry.Get(ctx, id)
	return ext, classify(err)
}

func (s *Service) ListExtensions(ctx context.Context, status store.ExtensionStatus) ([]store.Extension, error) {
	list, err := s.c.Registry.List(ctx, status)
	return list, classify(err)
}

// SetExtensionStatus changes the lifecycle status of id. Activation is
// admitted by the guard against the latest assessment: without one it fails
// with AssessmentRequired, and a blocked decision fails with ActivationBlocked.
func (s *Service) SetExtensionStatus(ctx context.Context, actor, id string, status store.ExtensionStatus) (store.Extension, error) {
	if err := requireID(id); err != nil {
		return store.Extension{}, err
	}
	id = strings.TrimSpace(id)
	if !registry.ValidStatus(status) {
		return store.Extension{}, classify(fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status))
	}
	if status == store.StatusActive {
		if _, err := s.c.Registry.Get(ctx, id); err != nil {
			return store.Extension{}, classify(err)
		}
		if _, err := s.admit(ctx, actor, id); err != nil {
			return store.Extension{}, err
		}
	}
	ext, err := s.c.Registry.SetStatus(ctx, id, status)
	if err != nil {
		return store.Extension{}, classify(err)
	}
	s.audit(ctx, actor, "extension.status", map[string]any{"id": ext.ID, "status": ext.Status})
	return ext, nil
}

// AnalyzeResult carries the sub-scores of one fresh assessment.
type AnalyzeResult struct {
	AssessmentID int64          `json:"assessment_id"`
	ExtensionID  string         `json:"extension_id"`
	SubScores    risk.SubScores `json:"sub_scores"`
	Overall      int            `json:"overall"`
	Details      map[string]any `json:"details,omitempty"`
}

func (s *Service) Analyze(ctx context.Context, actor, id string) (AnalyzeResult, error) {
	if err := requireID(id); err != nil {
		return AnalyzeResult{}, err
	}
	a, err := s.c.Scorer.Assess(ctx, strings.TrimSpace(id))
	if err != nil {
		return AnalyzeResult{}, classify(err)
	}
	s.audit(ctx, actor, "extension.analyze", map[string]any{"id": a.ExtensionID, "assessment_id": a.ID})
	return AnalyzeResult{
		AssessmentID: a.ID,
		ExtensionID:  a.ExtensionID,
		SubScores:    subScores(a),
		Overall:      a.Overall,
		Details:      a.Details,
	}, nil
}

// StressTest runs the matrix against id. A nil matrix uses the configured one.
func (s *Service) StressTest(ctx context.Context, actor, id string, matrix *stress.MatrixConfig) (stress.Report, error) {
	if err := requireID(id); err != nil {
		return stress.Report{}, err
	}
	m := s.c.Matrix
	if matrix != nil {
		m = *matrix
	}
	ext, err := s.c.Registry.Get(ctx, id)
	if err != nil {
		return stress.Report{}, classify(err)
	}
	rep, err := s.c.Stress.Run(ctx, ext, m)
	if err != nil {
		return stress.Report{}, classify(err)
	}
	s.audit(ctx, actor, "stress.run", map[string]any{
		"id": ext.ID, "run_id": rep.RunID, "total": rep.Total, "passed": rep.Passed, "warning": rep.Warning, "failed": rep.Failed,
	})
	return rep, nil
}

func (s *Service) ConflictCheck(ctx context.Context, actor string) (conflicts.Report, error) {
	rep, err := s.c.Conflicts.Check(ctx)
	if err != nil {
		return conflicts.Report{}, classify(err)
	}
	s.audit(ctx, actor, "conflicts.check", map[string]any{"run_id": rep.RunID, "total": rep.Total, "by_kind": rep.ByKind})
	return rep, nil
}

type RiskResult struct {
	AssessmentID int64           `json:"assessment_id"`
	ExtensionID  string          `json:"extension_id"`
	Score        int             `json:"score"`
	Level        store.RiskLevel `json:"level"`
	SubScores    risk.SubScores  `json:"sub_scores"`
	Blocked      bool            `json:"blocked"`
	Guard        guard.Result    `json:"guard"`
}

// RiskAssess stores a new assessment and lets the guard decide on it.
func (s *Service) RiskAssess(ctx context.Context, actor, id string) (RiskResult, error) {
	if err := requireID(id); err != nil {
		return RiskResult{}, err
	}
	a, err := s.c.Scorer.Assess(ctx, strings.TrimSpace(id))
	if err != nil {
		return RiskResult{}, classify(err)
	}
	s.audit(ctx, actor, "risk.assess", map[string]any{"id": a.ExtensionID, "assessment_id": a.ID, "overall": a.Overall, "level": a.Level})
	decision, err := s.evaluate(ctx, actor, a.ExtensionID)
	if err != nil {
		return RiskResult{}, err
	}
	return RiskResult{
		AssessmentID: a.ID,
		ExtensionID:  a.ExtensionID,
		Score:        a.Overall,
		Level:        a.Level,
		SubScores:    subScores(a),
		Blocked:      decision.Blocked,
		Guard:        decision,
	}, nil
}

func (s *Service) Evaluate(ctx context.Context, actor, id string) (guard.Result, error) {
	if err := requireID(id); err != nil {
		return guard.Result{}, err
	}
	return s.evaluate(ctx, actor, strings.TrimSpace(id))
}

func (s *Service) evaluate(ctx context.Context, actor, id string) (guard.Result, error) {
	res, err := s.c.Guard.Evaluate(ctx, id)
	if err != nil {
		return guard.Result{}, classify(err)
	}
	s.auditDecision(ctx, actor, res)
	return res, nil
}

func (s *Service) admit(ctx context.Context, actor, id string) (guard.Result, error) {
	res, err := s.c.Guard.Admit(ctx, id)
	if res.ExtensionID != "" {
		s.auditDecision(ctx, actor, res)
	}
	if err != nil {
		return res, classify(err)
	}
	return res, nil
}

func (s *Service) auditDecision(ctx context.Context, actor string, res guard.Result) {
	action := "guard.approve"
	if res.Blocked {
		action = "guard.block"
	}
	s.audit(ctx, actor, action, map[string]any{"id": res.ExtensionID, "risk_score": res.RiskScore, "threshold": res.Threshold})
}

func (s *Service) GuardRecord(ctx context.Context, id string) (store.GuardRecord, error) {
	if err := requireID(id); err != nil {
		return store.GuardRecord{}, err
	}
	rec, err := s.c.Guard.Get(ctx, strings.TrimSpace(id))
	return rec, classify(err)
}

type SimulationRequest struct {
	ExtensionID string            `json:"extension_id,omitempty"`
	Path        []simulator.Step  `json:"path"`
	Device      string            `json:"device"`
	Network     string            `json:"network,omitempty"`
	Config      *SimulationConfig `json:"config,omitempty"`
}

// DelayRange is an inclusive delay range in milliseconds.
type DelayRange struct {
	MinMS int `json:"min_ms"`
	MaxMS int `json:"max_ms"`
}

// SimulationConfig overrides simulator settings for one call. Unset fields
// keep the configured values. A seed makes the replay reproducible.
type SimulationConfig struct {
	Navigate *DelayRange `json:"navigate,omitempty"`
	Click    *DelayRange `json:"click,omitempty"`
	Scroll   *DelayRange `json:"scroll,omitempty"`
	Wait     *DelayRange `json:"wait,omitempty"`
	TypeChar *DelayRange `json:"type_char,omitempty"`
	Seed     *int64      `json:"seed,omitempty"`
	RealTime *bool       `json:"real_time,omitempty"`
}

type SimulationResult struct {
	RunID int64 `json:"run_id"`
	simulator.Result
}

// RunSimulation replays req.Path outside the gating flow and stores the
// replay log. A step failure is part of the result, not an error.
func (s *Service) RunSimulation(ctx context.Context, actor string, req SimulationRequest) (SimulationResult, error) {
	if len(req.Path) == 0 {
		return SimulationResult{}, classify(simulator.ErrEmptyPath)
	}
	device, err := simulator.ParseDevice(req.Device)
	if err != nil {
		return SimulationResult{}, classify(err)
	}
	network, err := simulator.ParseNetwork(req.Network)
	if err != nil {
		return SimulationResult{}, classify(err)
	}
	extID := strings.TrimSpace(req.ExtensionID)
	if extID != "" {
		if _, err := s.c.Registry.Get(ctx, extID); err != nil {
			return SimulationResult{}, classify(err)
		}
	}
	sim, err := s.simulatorFor(req.Config)
	if err != nil {
		return SimulationResult{}, classify(err)
	}
	res, err := sim.Run(ctx, req.Path, device, network)
	if err != nil {
		return SimulationResult{}, classify(err)
	}
	run := &store.SimulationRun{
		ExtensionID: extID,
		Device:      string(res.Device),
		Network:     string(res.Network),
		UXScore:     res.UXScore,
		StepCount:   res.StepCount,
		Summary:     res.Summary,
	}
	if s.c.Simulations != nil {
		if err := s.c.Simulations.SaveRun(ctx, run, res.Steps); err != nil {
			return SimulationResult{}, classify(err)
		}
	}
	s.audit(ctx, actor, "simulation.run", map[string]any{"run_id": run.ID, "device": run.Device, "ux_score": run.UXScore})
	return SimulationResult{RunID: run.ID, Result: res}, nil
}

func (s *Service) simulatorFor(cfg *SimulationConfig) (*simulator.Simulator, error) {
	if cfg == nil {
		return s.c.Simulator, nil
	}
	d := s.c.SimDelays
	override := func(r *DelayRange, lo, hi *int) {
		if r != nil {
			*lo, *hi = r.MinMS, r.MaxMS
		}
	}
	override(cfg.Navigate, &d.NavigateMinMS, &d.NavigateMaxMS)
	override(cfg.Click, &d.ClickMinMS, &d.ClickMaxMS)
	override(cfg.Scroll, &d.ScrollMinMS, &d.ScrollMaxMS)
	override(cfg.Wait, &d.WaitMinMS, &d.WaitMaxMS)
	override(cfg.TypeChar, &d.TypeCharMinMS, &d.TypeCharMaxMS)
	if err := config.ValidateDelays(d); err != nil {
		return nil, fmt.Errorf("%w: simulation config: %v", ErrInvalidInput, err)
	}
	if cfg.RealTime != nil {
		d.RealTime = *cfg.RealTime
	}
	random := s.c.SimRandom
	if cfg.Seed != nil {
		random = simulator.NewSeededSource(*cfg.Seed)
	}
	var sleeper simulator.Sleeper = simulator.NoopSleeper{}
	if d.RealTime {
		sleeper = simulator.RealSleeper{}
	}
	return simulator.New(simulator.Options{Delays: simulator.DelayBoundsFromConfig(d), Random: random, Sleeper: sleeper}), nil
}

// Sweep re-checks conflicts and then assesses and evaluates every active
// extension. A failure on one extension is logged and the sweep goes on.
func (s *Service) Sweep(ctx context.Context) error {
	if _, err := s.ConflictCheck(ctx, SystemActor); err != nil {
		return err
	}
	active, err := s.c.Registry.ListActive(ctx)
	if err != nil {
		return classify(err)
	}
	for _, ext := range active {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.RiskAssess(ctx, SystemActor, ext.ID); err != nil {
			s.logger.Errorf("governance sweep: %s: %v", ext.Name, err)
		}
	}
	return nil
}

func (s *Service) AuditLog(ctx context.Context, limit int) ([]store.AuditRecord, error) {
	if s.c.Audit == nil {
		return nil, nil
	}
	return s.c.Audit.List(ctx, limit)
}

func (s *Service) audit(ctx context.Context, actor, action string, details map[string]any) {
	if s.c.Audit == nil {
		return
	}
	if strings.TrimSpace(actor) == "" {
		actor = SystemActor
	}
	raw, _ := json.Marshal(details)
	if err := s.c.Audit.Log(ctx, actor, action, string(raw)); err != nil {
		s.logger.Errorf("audit %s: %v", action, err)
	}
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return classify(fmt.Errorf("%w: extension id is required", ErrInvalidInput))
	}
	return nil
}

func subScores(a store.RiskAssessment) risk.SubScores {
	return risk.SubScores{
		Security:      a.Security,
		Stability:     a.Stability,
		Performance:   a.Performance,
		Compatibility: a.Compatibility,
	}
}
