package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rentflow-backend/internal/config"
	"rentflow-backend/internal/jobs"
	"rentflow-backend/internal/logger"
)

// ErrSweepInProgress is returned by Trigger when the sweep is already running
var ErrSweepInProgress = errors.New("sweep already in progress")

// overrunRatio is the share of a tick interval a sweep may use before a warning is logged
const overrunRatio = 0.8

// SweepRunner executes one sweep by name
type SweepRunner interface {
	RunSweep(ctx context.Context, name jobs.SweepName) (jobs.SweepReport, error)
}

// EntryInfo describes a registered sweep and its next activation
type EntryInfo struct {
	Sweep jobs.SweepName `json:"sweep"`
	Spec  string         `json:"schedule"`
	Next  time.Time      `json:"next"`
	Prev  time.Time      `json:"prev,omitempty"`
}

type entry struct {
	id   cron.EntryID
	spec string
	mu   sync.Mutex
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	runner  SweepRunner
	entries map[jobs.SweepName]*entry

	inflight sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewScheduler creates a scheduler with one cron entry per sweep
func NewScheduler(runner SweepRunner, cfg config.SchedulerConfig) (*Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler timezone: %w", err)
	}

	cl := cronLogger{log: logger.Get().With("component", "cron")}
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{
		cron:    c,
		runner:  runner,
		entries: make(map[jobs.SweepName]*entry),
	}

	if err := s.registerJobs(map[jobs.SweepName]string{
		jobs.SweepReminder:     cfg.ReminderSweep,
		jobs.SweepOverdue:      cfg.OverdueSweep,
		jobs.SweepFeeRecompute: cfg.FeeRecomputeSweep,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all sweeps with the cron scheduler
func (s *Scheduler) registerJobs(specs map[jobs.SweepName]string) error {
	for _, name := range jobs.AllSweeps {
		spec := specs[name]
		id, err := s.cron.AddFunc(spec, func() {
			if _, err := s.run(context.Background(), name); err != nil && !errors.Is(err, ErrSweepInProgress) {
				logger.Error("Scheduled sweep failed", "sweep", name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to register %s sweep with schedule %q: %w", name, spec, err)
		}
		s.entries[name] = &entry{id: id, spec: spec}
		logger.Info("Registered sweep", "sweep", name, "schedule", spec)
	}

	logger.Info("All cron jobs registered successfully")
	return nil
}

// run executes a sweep, refusing to start a second copy of one already running
func (s *Scheduler) run(ctx context.Context, name jobs.SweepName) (jobs.SweepReport, error) {
	e, ok := s.entries[name]
	if !ok {
		return jobs.SweepReport{Sweep: name}, fmt.Errorf("%w: %q", jobs.ErrUnknownSweep, name)
	}
	if !e.mu.TryLock() {
		logger.Warn("Sweep still running, skipping", "sweep", name)
		return jobs.SweepReport{Sweep: name}, ErrSweepInProgress
	}
	defer e.mu.Unlock()

	s.inflight.Add(1)
	defer s.inflight.Done()

	start := time.Now()
	report, err := s.runner.RunSweep(ctx, name)
	s.checkOverrun(name, e, start, time.Since(start))
	return report, err
}

// checkOverrun warns when a sweep used most of the gap to its next tick
func (s *Scheduler) checkOverrun(name jobs.SweepName, e *entry, start time.Time, took time.Duration) {
	sched := s.cron.Entry(e.id).Schedule
	if sched == nil {
		return
	}
	if limit := overrunThreshold(sched, start); took > limit {
		logger.Warn("Sweep is close to overrunning its schedule",
			"sweep", name,
			"duration", took,
			"threshold", limit,
			"schedule", e.spec)
	}
}

func overrunThreshold(sched cron.Schedule, from time.Time) time.Duration {
	next := sched.Next(from)
	interval := sched.Next(next).Sub(next)
	return time.Duration(float64(interval) * overrunRatio)
}

// Trigger runs a sweep immediately through the same path as a cron tick
func (s *Scheduler) Trigger(ctx context.Context, name jobs.SweepName) (jobs.SweepReport, error) {
	logger.Info("Manually triggering sweep", "sweep", name)
	return s.run(ctx, name)
}

// Entries returns the registered sweeps with their next activation times
func (s *Scheduler) Entries() []EntryInfo {
	infos := make([]EntryInfo, 0, len(s.entries))
	for _, name := range jobs.AllSweeps {
		e, ok := s.entries[name]
		if !ok {
			continue
		}
		ce := s.cron.Entry(e.id)
		infos = append(infos, EntryInfo{Sweep: name, Spec: e.spec, Next: ce.Next, Prev: ce.Prev})
	}
	return infos
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	logger.Info("Cron scheduler started successfully")
}

// Stop prevents new ticks and waits for in-flight sweeps, including manual
// triggers, to finish
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.inflight.Wait()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.log.Warn("Previous run still active, tick skipped", keysAndValues...)
		return
	}
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
