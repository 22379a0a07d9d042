package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/repository"
	"rentflow-backend/internal/service"
)

// SweepName identifies one of the time-driven sweeps
type SweepName string

const (
	SweepReminder     SweepName = "reminder"
	SweepOverdue      SweepName = "overdue"
	SweepFeeRecompute SweepName = "fee-recompute"
)

// AllSweeps lists the sweeps in the order RunAll executes them
var AllSweeps = []SweepName{SweepOverdue, SweepFeeRecompute, SweepReminder}

// ErrUnknownSweep is returned for a sweep name that is not registered
var ErrUnknownSweep = errors.New("unknown sweep")

// ParseSweepName validates a sweep name coming from a flag or URL
func ParseSweepName(s string) (SweepName, error) {
	for _, name := range AllSweeps {
		if string(name) == s {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSweep, s)
}

// SweepReport summarizes a single sweep run
type SweepReport struct {
	Sweep      SweepName     `json:"sweep"`
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Candidates int           `json:"candidates"`
	Applied    int           `json:"applied"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// JobRunner executes the lifecycle sweeps against the order store
type JobRunner struct {
	orders    repository.OrderRepository
	policies  repository.LateFeePolicyRepository
	reminders repository.ReminderLogRepository
	sink      service.NotificationSink
	evaluator *service.LifecycleEvaluator

	now    func() time.Time
	loc    *time.Location
	tracer trace.Tracer
}

// Option customizes a JobRunner
type Option func(*JobRunner)

// WithClock overrides the wall clock used as "now" by every sweep
func WithClock(now func() time.Time) Option {
	return func(jr *JobRunner) { jr.now = now }
}

// WithLocation sets the timezone used for reminder calendar days
func WithLocation(loc *time.Location) Option {
	return func(jr *JobRunner) { jr.loc = loc }
}

// WithTracer overrides the tracer used for sweep spans
func WithTracer(tracer trace.Tracer) Option {
	return func(jr *JobRunner) { jr.tracer = tracer }
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(
	orders repository.OrderRepository,
	policies repository.LateFeePolicyRepository,
	reminders repository.ReminderLogRepository,
	sink service.NotificationSink,
	evaluator *service.LifecycleEvaluator,
	opts ...Option,
) *JobRunner {
	jr := &JobRunner{
		orders:    orders,
		policies:  policies,
		reminders: reminders,
		sink:      sink,
		evaluator: evaluator,
		now:       time.Now,
		loc:       time.UTC,
		tracer:    otel.Tracer("rentflow-backend/internal/jobs"),
	}
	for _, opt := range opts {
		opt(jr)
	}
	return jr
}

// RunSweep runs the named sweep. It is the single entry point shared by cron
// ticks, the ops endpoint and the -run-once flag.
func (jr *JobRunner) RunSweep(ctx context.Context, name SweepName) (SweepReport, error) {
	switch name {
	case SweepReminder:
		return jr.SendReturnReminders(ctx)
	case SweepOverdue:
		return jr.MarkOverdueOrders(ctx)
	case SweepFeeRecompute:
		return jr.RecomputeLateFees(ctx)
	default:
		return SweepReport{Sweep: name}, fmt.Errorf("%w: %q", ErrUnknownSweep, name)
	}
}

// RunAll runs every sweep once (for manual execution). Overdue marking runs
// first so newly overdue orders are not reminded about.
func (jr *JobRunner) RunAll(ctx context.Context) ([]SweepReport, error) {
	reports := make([]SweepReport, 0, len(AllSweeps))
	var errs []error
	for _, name := range AllSweeps {
		report, err := jr.RunSweep(ctx, name)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return reports, errors.Join(errs...)
}

type sweepFunc func(ctx context.Context, log *slog.Logger, report *SweepReport) error

// runWithRecovery wraps sweep execution with panic recovery, a run id, a
// trace span and a completion log line
func (jr *JobRunner) runWithRecovery(ctx context.Context, sweep SweepName, fn sweepFunc) (report SweepReport, err error) {
	report = SweepReport{
		Sweep:     sweep,
		RunID:     uuid.NewString(),
		StartedAt: jr.now().UTC(),
	}
	log := logger.WithSweep(string(sweep), report.RunID)

	ctx, span := jr.tracer.Start(ctx, "sweep."+string(sweep),
		trace.WithAttributes(
			attribute.String("sweep.name", string(sweep)),
			attribute.String("sweep.run_id", report.RunID),
		))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep %s panicked: %v", sweep, r)
			log.Error("Sweep panicked", "panic", r)
		}
		report.Duration = time.Since(start)

		span.SetAttributes(
			attribute.Int("sweep.candidates", report.Candidates),
			attribute.Int("sweep.applied", report.Applied),
			attribute.Int("sweep.skipped", report.Skipped),
			attribute.Int("sweep.failed", report.Failed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Sweep failed", "error", err, "duration", report.Duration)
		} else {
			log.Info("Sweep completed",
				"candidates", report.Candidates,
				"applied", report.Applied,
				"skipped", report.Skipped,
				"failed", report.Failed,
				"duration", report.Duration)
		}
		span.End()
	}()

	log.Info("Starting sweep")
	err = fn(ctx, log, &report)
	return report, err
}

// activePolicy looks the policy up fresh for every sweep
func (jr *JobRunner) activePolicy(ctx context.Context, log *slog.Logger) (*domain.LateFeePolicy, error) {
	policy, err := jr.policies.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load late fee policy: %w", err)
	}
	if policy == nil {
		log.Warn("Using fallback late fee", "error", domain.ErrNoActivePolicy)
		return nil, nil
	}
	log.Debug("Using late fee policy", "policy_id", policy.ID, "policy", policy.Name)
	return policy, nil
}

// handleOrderError classifies a per-order failure. Errors never escape the
// per-order boundary.
func handleOrderError(log *slog.Logger, report *SweepReport, order *domain.Order, err error) {
	switch {
	case errors.Is(err, domain.ErrStatusConflict):
		report.Skipped++
		log.Info("Order changed concurrently, skipping", "order_id", order.ID, "error", err)
	case errors.Is(err, domain.ErrInvariantViolation):
		report.Failed++
		log.Error("Order failed validation",
			"order_id", order.ID,
			"order_number", order.OrderNumber,
			"needs_review", true,
			"error", err)
	default:
		report.Failed++
		log.Error("Failed to process order", "order_id", order.ID, "error", err)
	}
}
