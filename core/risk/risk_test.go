package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extgov/core/security"
	"extgov/core/store"
)

func conflictsOf(sev ...store.Severity) []store.Conflict {
	out := make([]store.Conflict, 0, len(sev))
	for _, s := range sev {
		out = append(out, store.Conflict{Severity: s})
	}
	return out
}

func TestCompatibility(t *testing.T) {
	assert.Equal(t, 100, Compatibility(nil))
	assert.Equal(t, 65, Compatibility(conflictsOf(store.SeverityHigh, store.SeverityMedium, store.SeverityLow)))
	assert.Equal(t, 0, Compatibility(conflictsOf(
		store.SeverityHigh, store.SeverityHigh, store.SeverityHigh, store.SeverityHigh, store.SeverityHigh, store.SeverityHigh,
	)))
}

func TestStabilityAndPerformance(t *testing.T) {
	assert.Equal(t, 100, Stability(nil, 0))
	assert.Equal(t, 90, Stability(nil, 1))
	run := &store.StressRun{Total: 48, Passed: 36, Warning: 8, Failed: 4, AvgPerformance: 72}
	assert.Equal(t, 83, Stability(run, 0))
	assert.Equal(t, 63, Stability(run, 2))
	assert.Equal(t, 0, Stability(&store.StressRun{Total: 10, Failed: 10}, 1))
	assert.Equal(t, 72, Performance(run))
	assert.Equal(t, 100, Performance(nil))
}

func TestOverallAndLevel(t *testing.T) {
	assert.Equal(t, 0, Overall(SubScores{100, 100, 100, 100}))
	assert.Equal(t, 100, Overall(SubScores{}))
	assert.Equal(t, 25, Overall(SubScores{Security: 70, Stability: 80, Performance: 75, Compatibility: 75}))

	assert.Equal(t, store.RiskLow, Level(29))
	assert.Equal(t, store.RiskMedium, Level(30))
	assert.Equal(t, store.RiskMedium, Level(69))
	assert.Equal(t, store.RiskHigh, Level(70))
}

func withField(s SubScores, field, v int) SubScores {
	switch field {
	case 0:
		s.Security = v
	case 1:
		s.Stability = v
	case 2:
		s.Performance = v
	default:
		s.Compatibility = v
	}
	return s
}

func TestOverallIsMonotonic(t *testing.T) {
	values := []int{0, 13, 37, 50, 64, 81, 100}
	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				base := SubScores{Security: a, Stability: b, Performance: c, Compatibility: 50}
				for field := 0; field < 4; field++ {
					for v := 0; v < 100; v++ {
						lower, higher := withField(base, field, v), withField(base, field, v+1)
						require.LessOrEqual(t, Overall(higher), Overall(lower), "%+v -> %+v", lower, higher)
					}
				}
			}
		}
	}
}

func TestUnsatisfiedDependencies(t *testing.T) {
	host := map[string]string{"react": "18.2.0", "lodash": "4.17.21", "broken": "not-a-version"}
	deps := map[string]string{
		"react":    "^17.0.0",
		"lodash":   "^4.17.0",
		"left-pad": "^1.0.0",
		"broken":   "^1.0.0",
	}
	assert.Equal(t, []string{"react"}, UnsatisfiedDependencies(deps, host))
	assert.Empty(t, UnsatisfiedDependencies(deps, nil))
}

type fakeExtensions map[string]store.Extension

func (f fakeExtensions) Get(_ context.Context, id string) (store.Extension, error) {
	ext, ok := f[id]
	if !ok {
		return store.Extension{}, store.ErrNotFound
	}
	return ext, nil
}

type fakeSecurity struct{ score int }

func (f fakeSecurity) Analyze(context.Context, store.Extension) (security.Report, error) {
	return security.Report{Score: f.score, Capabilities: []string{"eval"}}, nil
}

type fakeConflicts []store.Conflict

func (f fakeConflicts) ForExtension(context.Context, store.Extension) ([]store.Conflict, error) {
	return f, nil
}

type fakeStress struct{ run *store.StressRun }

func (f fakeStress) LatestRun(context.Context, string) (*store.StressRun, error) {
	return f.run, nil
}

type memAssessments struct {
	rows []store.RiskAssessment
	err  error
}

func (m *memAssessments) Insert(_ context.Context, a *store.RiskAssessment) error {
	if m.err != nil {
		return m.err
	}
	a.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memAssessments) Latest(_ context.Context, id string) (*store.RiskAssessment, error) {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].ExtensionID == id {
			a := m.rows[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memAssessments) LatestPerExtension(context.Context) ([]store.RiskAssessment, error) {
	return m.rows, nil
}

func TestScorerAssessPersistsNewRecordEachCall(t *testing.T) {
	ext := store.Extension{ID: "e1", Name: "gallery"}
	ext.Dependencies = map[string]string{"react": "^17.0.0"}
	assessments := &memAssessments{}
	s := NewScorer(Deps{
		Extensions:  fakeExtensions{"e1": ext},
		Security:    fakeSecurity{score: 60},
		Conflicts:   fakeConflicts(conflictsOf(store.SeverityHigh, store.SeverityLow)),
		Stress:      fakeStress{run: &store.StressRun{ID: 9, Total: 4, Passed: 2, Warning: 2, AvgPerformance: 70}},
		Assessments: assessments,
	}, map[string]string{"react": "18.2.0"}, nil)

	a, err := s.Assess(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 60, a.Security)
	assert.Equal(t, 65, a.Stability)
	assert.Equal(t, 70, a.Performance)
	assert.Equal(t, 75, a.Compatibility)
	assert.Equal(t, 32, a.Overall)
	assert.Equal(t, store.RiskMedium, a.Level)
	assert.Equal(t, []string{"react"}, a.Details["unsatisfied_dependencies"])
	assert.Equal(t, int64(9), a.Details["stress_run_id"])

	b, err := s.Assess(context.Background(), "e1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, assessments.rows, 2)
}

func TestScorerAssessErrors(t *testing.T) {
	deps := Deps{
		Extensions:  fakeExtensions{"e1": {ID: "e1", Name: "x"}},
		Security:    fakeSecurity{score: 100},
		Conflicts:   fakeConflicts(nil),
		Stress:      fakeStress{},
		Assessments: &memAssessments{},
	}
	_, err := NewScorer(deps, nil, nil).Assess(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	writeErr := &store.PersistenceError{Op: "insert", Err: errors.New("disk full")}
	deps.Assessments = &memAssessments{err: writeErr}
	_, err = NewScorer(deps, nil, nil).Assess(context.Background(), "e1")
	var pe *store.PersistenceError
	require.ErrorAs(t, err, &pe)
}
