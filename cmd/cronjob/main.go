package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	httpapi "rentflow-backend/internal/api/http"
	"rentflow-backend/internal/config"
	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/jobs"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/repository/postgres"
	"rentflow-backend/internal/scheduler"
	"rentflow-backend/internal/service"
	"rentflow-backend/internal/telemetry"
	"rentflow-backend/internal/utils"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a single sweep and exit ('reminder', 'overdue', 'fee-recompute' or 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Rentflow lifecycle scheduler...", "log_level", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *runOnce); err != nil {
		logger.Error("Scheduler exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, runOnce string) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Notification channels
	sink, closeSink := buildNotificationSink(cfg, store.NotificationRepository)
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("Failed to close notification channels", "error", err)
		}
	}()
	logger.Info("Notification channels configured", "channels", sink.Channels())

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	evaluator := service.NewLifecycleEvaluator(
		domain.ReminderWindow{DaysBeforeReturn: cfg.LateFee.ReminderDaysBeforeReturn},
		utils.FeeOptions{FallbackPerDay: cfg.LateFee.FallbackPerDay(), Places: cfg.LateFee.Places()},
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(
		store.OrderRepository,
		store.LateFeePolicyRepository,
		store.ReminderLogRepository,
		sink,
		evaluator,
		jobs.WithLocation(loc),
	)

	// Check if running a single sweep
	if runOnce != "" {
		return runSweepOnce(ctx, jobRunner, runOnce)
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner, cfg.Scheduler)
	if err != nil {
		return err
	}

	cronScheduler.Start()
	logger.Info("Lifecycle scheduler is running. Press Ctrl+C to stop.")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Ops.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Ops.Addr,
			Handler:           httpapi.NewRouter(cronScheduler),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Ops HTTP server listening", "address", cfg.Ops.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down lifecycle scheduler...")
		cronScheduler.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Lifecycle scheduler stopped. Goodbye!")
	return nil
}

// runSweepOnce runs a single sweep, or all of them, and prints the reports
func runSweepOnce(ctx context.Context, jobRunner *jobs.JobRunner, name string) error {
	logger.Info("Running sweep once", "sweep", name)

	var (
		reports []jobs.SweepReport
		err     error
	)
	if name == "all" {
		reports, err = jobRunner.RunAll(ctx)
	} else {
		sweep, parseErr := jobs.ParseSweepName(name)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "Available sweeps:\n")
			for _, s := range jobs.AllSweeps {
				fmt.Fprintf(os.Stderr, "  - %s\n", s)
			}
			fmt.Fprintf(os.Stderr, "  - all\n")
			return parseErr
		}
		var report jobs.SweepReport
		report, err = jobRunner.RunSweep(ctx, sweep)
		reports = append(reports, report)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(reports); encErr != nil {
		logger.Warn("Failed to print sweep reports", "error", encErr)
	}

	logger.Info("Sweep execution completed", "sweep", name)
	return err
}
