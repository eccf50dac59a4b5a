// Package guard decides whether an extension may be activated based on its
// latest risk assessment.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"extgov/core/store"
	"extgov/core/utils"
)

const (
	DefaultThreshold = 70
	maxCASAttempts   = 5
)

var (
	ErrAssessmentRequired = errors.New("AssessmentRequired")
	ErrNotFound           = store.ErrNotFound
	ErrContention         = errors.New("guard record changed concurrently")
	ErrBlocked            = errors.New("ActivationBlocked")
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionBlocked  Decision = "blocked"
)

type Result struct {
	ExtensionID           string   `json:"extension_id"`
	Decision              Decision `json:"decision"`
	Blocked               bool     `json:"blocked"`
	Reason                string   `json:"reason,omitempty"`
	AdminOverrideRequired bool     `json:"admin_override_required"`
	RiskScore             int      `json:"risk_score"`
	Threshold             int      `json:"threshold"`
	AssessmentID          int64    `json:"assessment_id"`
}

type AssessmentSource interface {
	Latest(ctx context.Context, extensionID string) (*store.RiskAssessment, error)
}

type Guard struct {
	assessments AssessmentSource
	records     store.GuardStore
	threshold   int
	locks       *keyedMutex
	logger      *utils.Logger
}

// New builds a guard; a threshold outside 0..100 falls back to DefaultThreshold.
// A threshold of 0 blocks every extension.
func New(assessments AssessmentSource, records store.GuardStore, threshold int, logger *utils.Logger) *Guard {
	if threshold < 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Guard{
		assessments: assessments,
		records:     records,
		threshold:   threshold,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

func (g *Guard) Threshold() int {
	return g.threshold
}

// Evaluate compares the latest assessment of id with the threshold and
// records the outcome. Evaluations of the same extension are serialised in
// process and the write is a compare-and-set on the record version.
func (g *Guard) Evaluate(ctx context.Context, id string) (Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Result{}, fmt.Errorf("guard: extension id is required")
	}
	unlock := g.locks.Lock(id)
	defer unlock()

	a, err := g.assessments.Latest(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if a == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrAssessmentRequired, id)
	}
	res := Decide(a, g.threshold)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cur, err := g.records.Get(ctx, id)
		if err != nil {
			return Result{}, err
		}
		var expected int64
		if cur != nil {
			expected = cur.Version
		}
		rec := &store.GuardRecord{
			ExtensionID:           id,
			Blocked:               res.Blocked,
			Reason:                res.Reason,
			AdminOverrideRequired: res.AdminOverrideRequired,
			RiskScore:             res.RiskScore,
			Threshold:             res.Threshold,
			AssessmentID:          res.AssessmentID,
		}
		ok, err := g.records.CompareAndSet(ctx, rec, expected)
		if err != nil {
			return Result{}, err
		}
		if ok {
			if res.Blocked {
				g.logger.Warnf("guard: %s", res.Reason)
			} else if cur != nil && cur.Blocked {
				g.logger.Printf("guard: block on %s cleared (risk %d)", id, res.RiskScore)
			}
			return res, nil
		}
		g.logger.Debugf("guard: version conflict on %s, retrying", id)
	}
	return Result{}, fmt.Errorf("%w: %s", ErrContention, id)
}

// Admit evaluates id and fails with ErrBlocked when activation is not
// allowed. The result is returned in both cases.
func (g *Guard) Admit(ctx context.Context, id string) (Result, error) {
	res, err := g.Evaluate(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if res.Blocked {
		return res, fmt.Errorf("%w: %s", ErrBlocked, res.Reason)
	}
	return res, nil
}

// Decide maps an assessment to a guard result without touching storage.
func Decide(a *store.RiskAssessment, threshold int) Result {
	res := Result{
		ExtensionID:  a.ExtensionID,
		Decision:     DecisionApproved,
		RiskScore:    a.Overall,
		Threshold:    threshold,
		AssessmentID: a.ID,
	}
	if a.Overall >= threshold {
		res.Decision = DecisionBlocked
		res.Blocked = true
		res.AdminOverrideRequired = true
		res.Reason = fmt.Sprintf("risk score %d exceeds threshold %d", a.Overall, threshold)
	}
	return res
}

func (g *Guard) Get(ctx context.Context, id string) (store.GuardRecord, error) {
	rec, err := g.records.Get(ctx, id)
	if err != nil {
		return store.GuardRecord{}, err
	}
	if rec == nil {
		return store.GuardRecord{}, fmt.Errorf("guard record for %s: %w", id, ErrNotFound)
	}
	return *rec, nil
}
