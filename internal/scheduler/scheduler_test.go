package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddRejectsInvalidJobs(t *testing.T) {
	s := New(nil, 1)
	noop := func(context.Context) error { return nil }

	require.ErrorIs(t, s.Add(Job{Name: "", Interval: time.Second, Run: noop}), ErrInvalidJob)
	require.ErrorIs(t, s.Add(Job{Name: "x", Interval: 0, Run: noop}), ErrInvalidJob)
	require.ErrorIs(t, s.Add(Job{Name: "x", Interval: time.Second}), ErrInvalidJob)
	require.NoError(t, s.Add(Job{Name: "x", Interval: time.Second, Run: noop}))
}

func TestRunOnStartAndTicks(t *testing.T) {
	s := New(nil, 1)
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:       "counter",
		Interval:   10 * time.Millisecond,
		RunOnStart: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	require.ErrorIs(t, s.Add(Job{Name: "late", Interval: time.Second, Run: func(context.Context) error { return nil }}), ErrAlreadyStarted)
}

func TestJobNeverOverlapsItself(t *testing.T) {
	s := New(nil, 4)
	var (
		running atomic.Int32
		maxSeen atomic.Int32
		runs    atomic.Int32
	)
	require.NoError(t, s.Add(Job{
		Name:       "slow",
		Interval:   time.Millisecond,
		RunOnStart: true,
		Run: func(context.Context) error {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			runs.Add(1)
			return nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	require.EqualValues(t, 1, maxSeen.Load())
}

func TestErrorsAndPanicsAreLoggedAndJobKeepsRunning(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := New(zap.New(core), 1)

	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:       "flaky",
		Interval:   5 * time.Millisecond,
		RunOnStart: true,
		Run: func(context.Context) error {
			switch runs.Add(1) {
			case 1:
				return errors.New("db unavailable")
			case 2:
				panic("boom")
			}
			return nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	require.Equal(t, 1, logs.FilterMessage("job failed").Len())
	require.Equal(t, 1, logs.FilterMessage("job panicked").Len())
	require.GreaterOrEqual(t, logs.FilterMessage("job completed").Len(), 1)
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := New(nil, 1)
	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.Add(Job{
		Name:       "blocking",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			finished.Store(true)
			return ctx.Err()
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	<-started
	s.Stop()
	require.True(t, finished.Load())
}

func TestStopWithoutStart(t *testing.T) {
	New(nil, 1).Stop()
}
