// Package risk combines the security, stability, performance and
// compatibility sub-scores of an extension into one overall risk score.
package risk

import (
	"math"
	"sort"

	"extgov/core/store"
	"github.com/Masterminds/semver/v3"
)

const (
	highConflictPenalty   = 20
	mediumConflictPenalty = 10
	lowConflictPenalty    = 5
	unsatisfiedDepPenalty = 10
	lowRiskCeiling        = 30
	highRiskFloor         = 70
	noDataScore           = 100
)

// SubScores are health values in 0..100; higher is healthier.
type SubScores struct {
	Security      int `json:"security"`
	Stability     int `json:"stability"`
	Performance   int `json:"performance"`
	Compatibility int `json:"compatibility"`
}

func Compatibility(conflicts []store.Conflict) int {
	score := 100
	for _, c := range conflicts {
		switch c.Severity {
		case store.SeverityHigh:
			score -= highConflictPenalty
		case store.SeverityMedium:
			score -= mediumConflictPenalty
		case store.SeverityLow:
			score -= lowConflictPenalty
		}
	}
	return floor0(score)
}

// Stability rates the share of passing scenarios, with warnings counting
// half, and takes 10 points per dependency the host cannot satisfy.
func Stability(run *store.StressRun, unsatisfiedDeps int) int {
	score := noDataScore
	if run != nil && run.Total > 0 {
		score = int(math.Round(100 * (float64(run.Passed) + 0.5*float64(run.Warning)) / float64(run.Total)))
	}
	return floor0(score - unsatisfiedDepPenalty*unsatisfiedDeps)
}

func Performance(run *store.StressRun) int {
	if run == nil || run.Total == 0 {
		return noDataScore
	}
	return clamp(run.AvgPerformance)
}

// Overall is the risk score: 100 minus the rounded mean of the sub-scores.
func Overall(s SubScores) int {
	mean := float64(s.Security+s.Stability+s.Performance+s.Compatibility) / 4
	return clamp(100 - int(math.Round(mean)))
}

func Level(overall int) store.RiskLevel {
	switch {
	case overall < lowRiskCeiling:
		return store.RiskLow
	case overall < highRiskFloor:
		return store.RiskMedium
	default:
		return store.RiskHigh
	}
}

// UnsatisfiedDependencies lists the dependencies whose range excludes the
// version the host provides. Packages the host does not provide are bundled
// by the extension and never count.
func UnsatisfiedDependencies(deps map[string]string, host map[string]string) []string {
	var out []string
	for name, rng := range deps {
		hv, ok := host[name]
		if !ok {
			continue
		}
		c, err := semver.NewConstraint(rng)
		if err != nil {
			out = append(out, name)
			continue
		}
		v, err := semver.NewVersion(hv)
		if err != nil {
			continue
		}
		if !c.Check(v) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func floor0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v int) int {
	if v > 100 {
		return 100
	}
	return floor0(v)
}
