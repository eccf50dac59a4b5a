package risk

import (
	"context"

	"extgov/core/security"
	"extgov/core/store"
	"extgov/core/utils"
)

type ExtensionGetter interface {
	Get(ctx context.Context, id string) (store.Extension, error)
}

type SecurityAnalyzer interface {
	Analyze(ctx context.Context, ext store.Extension) (security.Report, error)
}

type ConflictSource interface {
	ForExtension(ctx context.Context, ext store.Extension) ([]store.Conflict, error)
}

type StressRunSource interface {
	LatestRun(ctx context.Context, extensionID string) (*store.StressRun, error)
}

// Deps groups the analyses a Scorer reads from.
type Deps struct {
	Extensions  ExtensionGetter
	Security    SecurityAnalyzer
	Conflicts   ConflictSource
	Stress      StressRunSource
	Assessments store.AssessmentsStore
}

type Scorer struct {
	deps         Deps
	hostPackages map[string]string
	logger       *utils.Logger
}

func NewScorer(deps Deps, hostPackages map[string]string, logger *utils.Logger) *Scorer {
	return &Scorer{deps: deps, hostPackages: hostPackages, logger: logger}
}

// Assess computes fresh sub-scores for id and stores them as a new
// assessment. Earlier assessments are never modified.
func (s *Scorer) Assess(ctx context.Context, id string) (store.RiskAssessment, error) {
	ext, err := s.deps.Extensions.Get(ctx, id)
	if err != nil {
		return store.RiskAssessment{}, err
	}
	sec, err := s.deps.Security.Analyze(ctx, ext)
	if err != nil {
		return store.RiskAssessment{}, err
	}
	conflicts, err := s.deps.Conflicts.ForExtension(ctx, ext)
	if err != nil {
		return store.RiskAssessment{}, err
	}
	run, err := s.deps.Stress.LatestRun(ctx, ext.ID)
	if err != nil {
		return store.RiskAssessment{}, err
	}
	unsatisfied := UnsatisfiedDependencies(ext.Dependencies, s.hostPackages)

	sub := SubScores{
		Security:      sec.Score,
		Stability:     Stability(run, len(unsatisfied)),
		Performance:   Performance(run),
		Compatibility: Compatibility(conflicts),
	}
	overall := Overall(sub)
	a := store.RiskAssessment{
		ExtensionID:   ext.ID,
		Security:      sub.Security,
		Stability:     sub.Stability,
		Performance:   sub.Performance,
		Compatibility: sub.Compatibility,
		Overall:       overall,
		Level:         Level(overall),
		Details:       details(sec, conflicts, run, unsatisfied),
	}
	if err := s.deps.Assessments.Insert(ctx, &a); err != nil {
		return store.RiskAssessment{}, err
	}
	s.logger.Printf("risk: %s (%s) overall=%d level=%s", ext.Name, ext.ID, a.Overall, a.Level)
	return a, nil
}

func details(sec security.Report, conflicts []store.Conflict, run *store.StressRun, unsatisfied []string) map[string]any {
	d := map[string]any{
		"capabilities":     sec.Capabilities,
		"denied_endpoints": sec.DeniedEndpoints,
		"conflict_count":   len(conflicts),
	}
	if len(unsatisfied) > 0 {
		d["unsatisfied_dependencies"] = unsatisfied
	}
	if run != nil {
		d["stress_run_id"] = run.ID
	}
	return d
}
