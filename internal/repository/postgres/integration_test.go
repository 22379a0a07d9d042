//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rentflow-backend/internal/config"
	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/jobs"
	"rentflow-backend/internal/repository/postgres"
	"rentflow-backend/internal/service"
	"rentflow-backend/internal/utils"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "config/config.test.yaml", "path to config file")
}

// repoRoot walks up from the package directory to the module root
func repoRoot(t *testing.T) string {
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}

func prepareDB(t *testing.T) *sql.DB {
	root := repoRoot(t)
	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	cfg, err := config.Load(path)
	require.NoError(t, err, "failed to load config from %s", path)

	var db *sql.DB
	// Retry connection as DB might still be starting up
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(2 * time.Second)
	}
	require.NoError(t, err, "failed to connect to database")

	schema, err := os.ReadFile(filepath.Join(root, "migrations", "001_rental_lifecycle.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	_, err = db.Exec(`TRUNCATE notifications, order_reminders, orders, customers, late_fee_policies RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestLifecycleSweeps_Integration(t *testing.T) {
	db := prepareDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var customerID int64
	require.NoError(t, db.QueryRow(
		`INSERT INTO customers (name, email) VALUES ('Ada', 'ada@example.com') RETURNING id`).Scan(&customerID))

	var lateID, dueSoonID int64
	require.NoError(t, db.QueryRow(`
		INSERT INTO orders (order_number, customer_id, status, start_date, end_date, total_amount, remaining_amount)
		VALUES ('R-1', $1, 'delivered', $2, $3, 1000, 200) RETURNING id`,
		customerID, now.Add(-10*24*time.Hour), now.Add(-4*24*time.Hour)).Scan(&lateID))
	require.NoError(t, db.QueryRow(`
		INSERT INTO orders (order_number, customer_id, status, start_date, end_date, total_amount, remaining_amount)
		VALUES ('R-2', $1, 'delivered', $2, $3, 400, 400) RETURNING id`,
		customerID, now.Add(-2*24*time.Hour), now.Add(30*time.Hour)).Scan(&dueSoonID))

	_, err := db.Exec(`
		INSERT INTO late_fee_policies (name, daily_fee_percentage, max_fee_percentage, grace_period_hours, is_active)
		VALUES ('standard', 5, 20, 24, TRUE)`)
	require.NoError(t, err)

	store := postgres.NewStore(db)
	sink := service.NewMultiSink().Add("in_app", service.NewInAppNotifier(store.NotificationRepository))
	evaluator := service.NewLifecycleEvaluator(
		domain.ReminderWindow{DaysBeforeReturn: 2},
		utils.FeeOptions{FallbackPerDay: decimal.NewFromInt(50), Places: 2},
	)
	runnerAt := func(at time.Time) *jobs.JobRunner {
		return jobs.NewJobRunner(store.OrderRepository, store.LateFeePolicyRepository,
			store.ReminderLogRepository, sink, evaluator,
			jobs.WithClock(func() time.Time { return at }))
	}

	orderState := func(id int64) (string, decimal.Decimal, decimal.Decimal) {
		var status string
		var fee, remaining decimal.Decimal
		require.NoError(t, db.QueryRow(
			`SELECT status, late_fee, remaining_amount FROM orders WHERE id = $1`, id).Scan(&status, &fee, &remaining))
		return status, fee, remaining
	}

	t.Run("Overdue sweep", func(t *testing.T) {
		report, err := runnerAt(now).MarkOverdueOrders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Applied)

		status, fee, remaining := orderState(lateID)
		assert.Equal(t, "overdue", status)
		assert.True(t, decimal.NewFromInt(150).Equal(fee), "fee %s", fee)
		assert.True(t, decimal.NewFromInt(350).Equal(remaining), "remaining %s", remaining)
	})

	t.Run("Fee recompute is idempotent", func(t *testing.T) {
		report, err := runnerAt(now).RecomputeLateFees(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Applied)

		_, fee, remaining := orderState(lateID)
		assert.True(t, decimal.NewFromInt(150).Equal(fee))
		assert.True(t, decimal.NewFromInt(350).Equal(remaining))
	})

	t.Run("Fee accrues up to the cap", func(t *testing.T) {
		later := runnerAt(now.Add(2 * 24 * time.Hour))
		report, err := later.RecomputeLateFees(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Applied)

		_, fee, remaining := orderState(lateID)
		assert.True(t, decimal.NewFromInt(200).Equal(fee), "fee %s", fee)
		assert.True(t, decimal.NewFromInt(400).Equal(remaining), "remaining %s", remaining)
	})

	t.Run("Reminder sent once per day", func(t *testing.T) {
		first, err := runnerAt(now).SendReturnReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Applied)

		second, err := runnerAt(now).SendReturnReminders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Applied)
		assert.Equal(t, 1, second.Skipped)

		var count int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM notifications WHERE order_id = $1 AND kind = $2`,
			dueSoonID, string(domain.NotificationKindReturnReminder)).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("Returned order is left alone", func(t *testing.T) {
		_, err := db.Exec(`UPDATE orders SET status = 'returned' WHERE id = $1`, lateID)
		require.NoError(t, err)

		report, err := runnerAt(now.Add(3 * 24 * time.Hour)).RecomputeLateFees(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Candidates)

		status, fee, _ := orderState(lateID)
		assert.Equal(t, "returned", status)
		assert.True(t, decimal.NewFromInt(200).Equal(fee))
	})
}
