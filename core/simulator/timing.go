package simulator

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"extgov/config"
)

// RandomSource draws uniform integers in [0,n). Implementations must be safe
// for concurrent use; stress cells share one source.
type RandomSource interface {
	Int64N(n int64) int64
}

type globalSource struct{}

func (globalSource) Int64N(n int64) int64 { return rand.Int64N(n) }

// NewRandomSource returns the process-wide generator.
func NewRandomSource() RandomSource { return globalSource{} }

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *seededSource) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Int64N(n)
}

// NewSeededSource returns a reproducible generator.
func NewSeededSource(seed int64) RandomSource {
	return &seededSource{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

type Range struct {
	Min time.Duration
	Max time.Duration
}

func (r Range) draw(src RandomSource) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	span := int64((r.Max - r.Min) / time.Millisecond)
	return r.Min + time.Duration(src.Int64N(span+1))*time.Millisecond
}

type DelayBounds struct {
	Navigate Range
	Click    Range
	Scroll   Range
	Wait     Range
	TypeChar Range
}

func DefaultDelayBounds() DelayBounds {
	return DelayBounds{
		Navigate: msRange(500, 1000),
		Click:    msRange(100, 300),
		Scroll:   msRange(200, 500),
		Wait:     msRange(500, 1000),
		TypeChar: msRange(50, 150),
	}
}

// DelayBoundsFromConfig expects a normalized config.
func DelayBoundsFromConfig(d config.DelayConfig) DelayBounds {
	return DelayBounds{
		Navigate: msRange(d.NavigateMinMS, d.NavigateMaxMS),
		Click:    msRange(d.ClickMinMS, d.ClickMaxMS),
		Scroll:   msRange(d.ScrollMinMS, d.ScrollMaxMS),
		Wait:     msRange(d.WaitMinMS, d.WaitMaxMS),
		TypeChar: msRange(d.TypeCharMinMS, d.TypeCharMaxMS),
	}
}

func msRange(min, max int) Range {
	return Range{Min: time.Duration(min) * time.Millisecond, Max: time.Duration(max) * time.Millisecond}
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper waits for the full delay unless ctx ends first.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoopSleeper only records delays; used when simulated time should not cost wall time.
type NoopSleeper struct{}

func (NoopSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
