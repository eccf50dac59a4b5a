package stress

import (
	"context"
	"errors"
	"time"

	"extgov/core/store"
)

var (
	ErrScenarioTimeout = errors.New("ScenarioTimeout")
	ErrInvalidMatrix   = errors.New("invalid matrix")
)

// Measurement is what an executor observed for one cell.
type Measurement struct {
	Duration         time.Duration
	MemoryMB         float64
	CPUPercent       float64
	RenderMS         int64
	ErrorCount       int
	HardFault        bool
	Crash            bool
	MemoryLeak       bool
	PerformanceScore int
}

type Executor interface {
	Execute(ctx context.Context, ext store.Extension, cell Cell) (Measurement, error)
}

// Classify: a crash, or a hard fault with errors, fails the cell. Otherwise a
// leak or a performance score under 60 is a warning.
func Classify(m Measurement) store.Outcome {
	switch {
	case m.Crash || (m.HardFault && m.ErrorCount > 0):
		return store.OutcomeFailed
	case m.MemoryLeak || m.PerformanceScore < 60:
		return store.OutcomeWarning
	default:
		return store.OutcomePassed
	}
}
