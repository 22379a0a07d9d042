package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rentflow-backend/internal/config"
	"rentflow-backend/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []jobs.SweepName
	block   chan struct{}
	started chan jobs.SweepName
	err     error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan jobs.SweepName, 16)}
}

func (f *fakeRunner) RunSweep(ctx context.Context, name jobs.SweepName) (jobs.SweepReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	f.started <- name
	if f.block != nil {
		<-f.block
	}
	return jobs.SweepReport{Sweep: name, RunID: "run-1", Applied: 1}, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func dailyConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		ReminderSweep:     "0 0 9 * * *",
		OverdueSweep:      "0 0 1 * * *",
		FeeRecomputeSweep: "0 0 * * * *",
	}
}

func TestNewScheduler(t *testing.T) {
	t.Run("Registers every sweep", func(t *testing.T) {
		s, err := NewScheduler(newFakeRunner(), dailyConfig())
		require.NoError(t, err)

		entries := s.Entries()
		require.Len(t, entries, 3)
		for i, name := range jobs.AllSweeps {
			assert.Equal(t, name, entries[i].Sweep)
		}
		assert.Equal(t, "0 0 1 * * *", entries[0].Spec)
		assert.False(t, s.IsRunning())
	})

	t.Run("Five field expressions", func(t *testing.T) {
		cfg := dailyConfig()
		cfg.ReminderSweep = "30 8 * * *"
		_, err := NewScheduler(newFakeRunner(), cfg)
		assert.NoError(t, err)
	})

	t.Run("Invalid expression", func(t *testing.T) {
		cfg := dailyConfig()
		cfg.OverdueSweep = "every night"
		_, err := NewScheduler(newFakeRunner(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overdue")
	})

	t.Run("Invalid timezone", func(t *testing.T) {
		cfg := dailyConfig()
		cfg.Timezone = "Mars/Olympus_Mons"
		_, err := NewScheduler(newFakeRunner(), cfg)
		assert.Error(t, err)
	})
}

func TestScheduler_Trigger(t *testing.T) {
	t.Run("Runs the named sweep", func(t *testing.T) {
		runner := newFakeRunner()
		s, err := NewScheduler(runner, dailyConfig())
		require.NoError(t, err)

		report, err := s.Trigger(context.Background(), jobs.SweepFeeRecompute)
		require.NoError(t, err)
		assert.Equal(t, jobs.SweepFeeRecompute, report.Sweep)
		assert.Equal(t, 1, report.Applied)
		assert.Equal(t, 1, runner.callCount())
	})

	t.Run("Propagates sweep failure", func(t *testing.T) {
		runner := newFakeRunner()
		runner.err = errors.New("query failed")
		s, err := NewScheduler(runner, dailyConfig())
		require.NoError(t, err)

		_, err = s.Trigger(context.Background(), jobs.SweepOverdue)
		assert.EqualError(t, err, "query failed")
	})

	t.Run("Unknown sweep", func(t *testing.T) {
		runner := newFakeRunner()
		s, err := NewScheduler(runner, dailyConfig())
		require.NoError(t, err)

		_, err = s.Trigger(context.Background(), jobs.SweepName("billing"))
		assert.ErrorIs(t, err, jobs.ErrUnknownSweep)
		assert.Equal(t, 0, runner.callCount())
	})

	t.Run("Rejects overlapping run", func(t *testing.T) {
		runner := newFakeRunner()
		runner.block = make(chan struct{})
		s, err := NewScheduler(runner, dailyConfig())
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := s.Trigger(context.Background(), jobs.SweepOverdue)
			done <- err
		}()
		<-runner.started

		_, err = s.Trigger(context.Background(), jobs.SweepOverdue)
		assert.ErrorIs(t, err, ErrSweepInProgress)

		// Other sweeps are independent.
		go func() { _, _ = s.Trigger(context.Background(), jobs.SweepReminder) }()
		assert.Equal(t, jobs.SweepReminder, <-runner.started)

		close(runner.block)
		assert.NoError(t, <-done)
	})
}

func TestScheduler_StartStop(t *testing.T) {
	runner := newFakeRunner()
	cfg := dailyConfig()
	cfg.FeeRecomputeSweep = "@every 1s"
	s, err := NewScheduler(runner, cfg)
	require.NoError(t, err)

	s.Start()
	assert.True(t, s.IsRunning())

	select {
	case name := <-runner.started:
		assert.Equal(t, jobs.SweepFeeRecompute, name)
	case <-time.After(5 * time.Second):
		t.Fatal("fee recompute sweep did not fire")
	}

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestScheduler_StopWaitsForInflightSweep(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	s, err := NewScheduler(runner, dailyConfig())
	require.NoError(t, err)
	s.Start()

	go func() { _, _ = s.Trigger(context.Background(), jobs.SweepReminder) }()
	<-runner.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}
}

func TestOverrunThreshold(t *testing.T) {
	from := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

	hourly, err := config.CronParser.Parse("0 0 * * * *")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Minute, overrunThreshold(hourly, from))

	daily, err := config.CronParser.Parse("0 0 1 * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(float64(24*time.Hour)*0.8), overrunThreshold(daily, from))
}
