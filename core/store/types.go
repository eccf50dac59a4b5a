package store

import (
	"errors"
	"fmt"
	"time"
)

type ExtensionKind string

const (
	KindModule    ExtensionKind = "module"
	KindComponent ExtensionKind = "component"
)

type ExtensionStatus string

const (
	StatusActive        ExtensionStatus = "active"
	StatusDisabled      ExtensionStatus = "disabled"
	StatusPendingReview ExtensionStatus = "pending_review"
)

// Surface is everything an extension claims in the shared host.
type Surface struct {
	Files        []string          `json:"files"`
	Routes       []string          `json:"routes"`
	Components   []string          `json:"components"`
	Stylesheets  []string          `json:"stylesheets"`
	Dependencies map[string]string `json:"dependencies"`
	APIEndpoints []string          `json:"api_endpoints"`
	Migrations   []string          `json:"migrations"`
	GlobalState  []string          `json:"global_state"`
}

type Extension struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Author  string          `json:"author"`
	Version string          `json:"version"`
	Kind    ExtensionKind   `json:"kind"`
	Status  ExtensionStatus `json:"status"`
	Surface
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ConflictKind string

const (
	ConflictRoute       ConflictKind = "route_collision"
	ConflictComponent   ConflictKind = "component_override"
	ConflictStylesheet  ConflictKind = "stylesheet_collision"
	ConflictGlobalState ConflictKind = "global_state_collision"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Conflict struct {
	ID         int64        `json:"id"`
	RunID      int64        `json:"run_id"`
	ExtensionA string       `json:"extension_a"`
	ExtensionB string       `json:"extension_b"`
	Kind       ConflictKind `json:"kind"`
	Severity   Severity     `json:"severity"`
	Resources  []string     `json:"resources"`
	Suggestion string       `json:"suggestion"`
	CreatedAt  time.Time    `json:"created_at"`
}

type ConflictRun struct {
	ID             int64                `json:"id"`
	SnapshotHash   string               `json:"snapshot_hash"`
	ExtensionCount int                  `json:"extension_count"`
	Total          int                  `json:"total"`
	ByKind         map[ConflictKind]int `json:"by_kind"`
	CreatedAt      time.Time            `json:"created_at"`
}

type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeWarning Outcome = "warning"
	OutcomeFailed  Outcome = "failed"
)

type StressRun struct {
	ID             int64     `json:"id"`
	ExtensionID    string    `json:"extension_id"`
	Total          int       `json:"total"`
	Passed         int       `json:"passed"`
	Warning        int       `json:"warning"`
	Failed         int       `json:"failed"`
	AvgPerformance int       `json:"avg_performance"`
	ConfigJSON     string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type TestScenario struct {
	ID               int64     `json:"id"`
	RunID            int64     `json:"run_id"`
	ExtensionID      string    `json:"extension_id"`
	TestType         string    `json:"test_type"`
	Device           string    `json:"device"`
	Resolution       string    `json:"resolution"`
	Network          string    `json:"network"`
	Outcome          Outcome   `json:"outcome"`
	DurationMS       int64     `json:"duration_ms"`
	MemoryMB         float64   `json:"memory_mb"`
	CPUPercent       float64   `json:"cpu_percent"`
	RenderMS         int64     `json:"render_ms"`
	ErrorCount       int       `json:"error_count"`
	CrashDetected    bool      `json:"crash_detected"`
	MemoryLeak       bool      `json:"memory_leak"`
	PerformanceScore int       `json:"performance_score"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type SimulationSummary struct {
	AvgMS   int64 `json:"avg_ms"`
	MinMS   int64 `json:"min_ms"`
	MaxMS   int64 `json:"max_ms"`
	TotalMS int64 `json:"total_ms"`
	Failed  int   `json:"failed"`
}

type SimulationRun struct {
	ID          int64             `json:"id"`
	ExtensionID string            `json:"extension_id,omitempty"`
	Device      string            `json:"device"`
	Network     string            `json:"network"`
	UXScore     int               `json:"ux_score"`
	StepCount   int               `json:"step_count"`
	Summary     SimulationSummary `json:"summary"`
	CreatedAt   time.Time         `json:"created_at"`
}

type SimulationStep struct {
	RunID      int64             `json:"run_id"`
	StepNumber int               `json:"step_number"`
	Action     string            `json:"action"`
	Target     string            `json:"target,omitempty"`
	X          *int              `json:"x,omitempty"`
	Y          *int              `json:"y,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type RiskAssessment struct {
	ID            int64          `json:"id"`
	ExtensionID   string         `json:"extension_id"`
	Security      int            `json:"security"`
	Stability     int            `json:"stability"`
	Performance   int            `json:"performance"`
	Compatibility int            `json:"compatibility"`
	Overall       int            `json:"overall"`
	Level         RiskLevel      `json:"level"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type GuardRecord struct {
	ExtensionID           string    `json:"extension_id"`
	Blocked               bool      `json:"blocked"`
	Reason                string    `json:"reason,omitempty"`
	AdminOverrideRequired bool      `json:"admin_override_required"`
	RiskScore             int       `json:"risk_score"`
	Threshold             int       `json:"threshold"`
	AssessmentID          int64     `json:"assessment_id"`
	Version               int64     `json:"version"`
	UpdatedAt             time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("not found")

// PersistenceError marks a failed write; callers map it to an internal error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
