package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/repository"
)

type reminderLogRepository struct {
	db *sql.DB
}

func NewReminderLogRepository(db *sql.DB) repository.ReminderLogRepository {
	return &reminderLogRepository{db: db}
}

func (r *reminderLogRepository) Record(ctx context.Context, orderID int64, day time.Time) (bool, error) {
	query := `INSERT INTO order_reminders (order_id, reminder_date, sent_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (order_id, reminder_date) DO NOTHING`

	reminderDate := day.Format("2006-01-02")
	logger.DatabaseCall("INSERT", "order_reminders", "orderID", orderID, "date", reminderDate)

	result, err := r.db.ExecContext(ctx, query, orderID, reminderDate, time.Now())
	if err != nil {
		logger.DatabaseResult("INSERT", 0, err, "orderID", orderID)
		return false, fmt.Errorf("%w: record reminder for order %d: %w", domain.ErrTransientStore, orderID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		logger.DatabaseResult("INSERT", 0, err, "orderID", orderID)
		return false, fmt.Errorf("%w: record reminder for order %d: %w", domain.ErrTransientStore, orderID, err)
	}
	logger.DatabaseResult("INSERT", rows, nil, "orderID", orderID)
	return rows == 1, nil
}
