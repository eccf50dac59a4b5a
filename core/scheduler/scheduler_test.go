package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(&countingSweeper{}, "every tuesday", 0, nil)
	require.Error(t, err)

	_, err = New(&countingSweeper{}, "@every 1h", 0, nil)
	require.NoError(t, err)
	_, err = New(&countingSweeper{}, "30 2 * * *", 0, nil)
	require.NoError(t, err)
}

func TestRunOnceRecordsOutcome(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	s, err := New(sw, "@every 1h", time.Second, nil)
	require.NoError(t, err)

	require.Error(t, s.RunOnce(context.Background()))
	st := s.StatsSnapshot()
	require.NotNil(t, st.LastTickAtUTC)
	assert.Equal(t, int64(1), st.TicksTotal)
	assert.Equal(t, int64(1), st.TickErrorsTotal)
	assert.Equal(t, "db down", st.LastError)
	assert.Equal(t, int32(1), sw.calls.Load())
}

func TestStartTriggersSweeps(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New(sw, "@every 1s", 0, nil)
	require.NoError(t, err)

	require.NoError(t, s.StartWithContext(context.Background()))
	require.NoError(t, s.StartWithContext(context.Background()))
	require.Eventually(t, func() bool { return sw.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.StopWithContext(ctx))
	require.NoError(t, s.StopWithContext(ctx))
}
