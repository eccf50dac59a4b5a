package api

import (
	"context"
	"errors"

	"extgov/core/utils"
)

type BackgroundWorker interface {
	StartWithContext(context.Context) error
	StopWithContext(context.Context) error
}

type BackgroundController interface {
	Start(context.Context) error
	Stop(context.Context) error
}

type backgroundManager struct {
	logger  *utils.Logger
	workers []BackgroundWorker
}

func newBackgroundManager(logger *utils.Logger, workers ...BackgroundWorker) *backgroundManager {
	out := make([]BackgroundWorker, 0, len(workers))
	for _, w := range workers {
		if w == nil {
			continue
		}
		out = append(out, w)
	}
	return &backgroundManager{logger: logger, workers: out}
}

func BuildBackgroundController(logger *utils.Logger, workers ...BackgroundWorker) BackgroundController {
	return newBackgroundManager(logger, workers...)
}

// Start launches every worker; a worker that fails to start is logged and
// the others still run.
func (m *backgroundManager) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, w := range m.workers {
		if err := w.StartWithContext(ctx); err != nil {
			m.logger.Errorf("background worker start: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *backgroundManager) Stop(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, w := range m.workers {
		if err := w.StopWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
