package repository

import (
	"context"
	"time"

	"rentflow-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// OrderRepository is the scheduler's view of the order store.
// Every write is conditional on the expected current status and reports
// domain.ErrStatusConflict when the row has moved on.
type OrderRepository interface {
	QueryOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, expected, status domain.OrderStatus, lateFee, remaining decimal.Decimal) (*domain.Order, error)
	UpdateOrderFee(ctx context.Context, id int64, expectedStatus domain.OrderStatus, expectedFee, lateFee, remaining decimal.Decimal) (*domain.Order, error)
}

type LateFeePolicyRepository interface {
	// GetActive returns nil, nil when no policy is active.
	GetActive(ctx context.Context) (*domain.LateFeePolicy, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
}

type ReminderLogRepository interface {
	// Record stores that a reminder for orderID was sent on day. It returns
	// false when one was already recorded.
	Record(ctx context.Context, orderID int64, day time.Time) (bool, error)
}
