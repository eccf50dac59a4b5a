// Package scheduler runs the periodic governance sweep.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"extgov/core/utils"
	"github.com/robfig/cron/v3"
)

type Sweeper interface {
	Sweep(ctx context.Context) error
}

type Scheduler struct {
	sweeper Sweeper
	spec    string
	timeout time.Duration
	logger  *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
	stats   Stats
}

type Stats struct {
	TicksTotal      int64
	TickErrorsTotal int64
	LastTickAtUTC   *time.Time
	LastError       string
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates spec ("@every 1h", "0 3 * * *", ...). timeout bounds one
// sweep; zero means no bound.
func New(sweeper Sweeper, spec string, timeout time.Duration, logger *utils.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron spec %q: %w", spec, err)
	}
	return &Scheduler{sweeper: sweeper, spec: spec, timeout: timeout, logger: logger}, nil
}

func (s *Scheduler) StartWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return err
	}
	s.cron, s.cancel, s.running = c, cancel, true
	c.Start()
	s.logger.Printf("scheduler: governance sweep scheduled (%s)", s.spec)
	return nil
}

// StopWithContext stops scheduling and waits for a running sweep until ctx ends.
func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel, s.running = nil, nil, false
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one sweep immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	started := time.Now()
	err := s.sweeper.Sweep(ctx)
	at := started.UTC()
	s.mu.Lock()
	s.stats.TicksTotal++
	s.stats.LastTickAtUTC = &at
	s.stats.LastError = ""
	if err != nil {
		s.stats.TickErrorsTotal++
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Errorf("scheduler: sweep failed: %v", err)
		return err
	}
	s.logger.Printf("scheduler: sweep finished in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

func (s *Scheduler) StatsSnapshot() Stats {
	if s == nil {
		return Stats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	if out.LastTickAtUTC != nil {
		at := *out.LastTickAtUTC
		out.LastTickAtUTC = &at
	}
	return out
}
