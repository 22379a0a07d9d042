package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/repository"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationRepository.Create", "customerID", n.CustomerID, "orderID", n.OrderID, "kind", n.Kind)

	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "reason", "failed to marshal attributes")
		return fmt.Errorf("marshal notification attributes: %w", err)
	}

	query := `INSERT INTO notifications (customer_id, order_id, kind, title, message, is_read, attributes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	logger.DatabaseCall("INSERT", "notifications", "customerID", n.CustomerID, "orderID", n.OrderID)

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	err = r.db.QueryRowContext(ctx, query, n.CustomerID, n.OrderID, n.Kind, n.Title, n.Message, n.IsRead, attrs, n.CreatedAt).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "customerID", n.CustomerID, "orderID", n.OrderID)
		return fmt.Errorf("%w: insert notification: %w", domain.ErrTransientStore, err)
	}
	logger.ExitMethod("notificationRepository.Create", "notificationID", n.ID)
	return nil
}
