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

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 3 * * *", false},
		{"@every 10m", false},
		{"@daily", false},
		{"not a schedule", true},
		{"* * *", true},
		{"61 * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 5, 1, 10, 7, 0, 0, time.UTC)

	next, err := NextRun("*/15 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC), next)

	_, err = NextRun("bogus", from)
	assert.Error(t, err)
}

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("disabled", "", noop))
	assert.Empty(t, s.Status())

	require.NoError(t, s.Add("sync", "@every 1h", noop))
	assert.Error(t, s.Add("sync", "@every 2h", noop))
	assert.Error(t, s.Add("bad", "whenever", noop))

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "sync", status[0].Name)
	assert.Equal(t, "@every 1h", status[0].Schedule)
	assert.True(t, status[0].NextRun.IsZero())
}

func TestScheduler_RunNowRequiresStart(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Add("sync", "@every 1h", func(context.Context) error { return nil }))

	assert.ErrorIs(t, s.RunNow("sync"), ErrNotStarted)
	assert.ErrorIs(t, s.RunNow("missing"), ErrJobNotFound)
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler()
	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Add("sync", "@every 1h", func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.RunNow("sync"))
	assert.ErrorIs(t, s.RunNow("sync"), ErrJobRunning)

	close(release)
	require.Eventually(t, func() bool {
		return !s.Status()[0].Running
	}, time.Second, 10*time.Millisecond)

	status := s.Status()[0]
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, 1, status.Skipped)
	assert.False(t, status.LastRun.IsZero())
	assert.False(t, status.NextRun.IsZero())
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_RecordsFailures(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Add("failing", "@every 1h", func(context.Context) error {
		return errors.New("source unavailable")
	}))
	require.NoError(t, s.Add("panicking", "@every 1h", func(context.Context) error {
		panic("boom")
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.RunNow("failing"))
	require.NoError(t, s.RunNow("panicking"))

	require.Eventually(t, func() bool {
		for _, st := range s.Status() {
			if st.Running || st.LastError == "" {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	status := s.Status()
	assert.Equal(t, "source unavailable", status[0].LastError)
	assert.Contains(t, status[1].LastError, "boom")
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, s.Add("sync", "@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.RunNow("sync"))
	<-started
	s.Stop()

	assert.True(t, cancelled.Load())
	assert.ErrorIs(t, s.RunNow("sync"), ErrNotStarted)
}
