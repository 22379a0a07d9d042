package service

import (
	"context"

	"rentflow-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// NotificationSink delivers the customer-facing side effects of lifecycle transitions.
// Delivery guarantees belong to the sink; callers only log failures.
type NotificationSink interface {
	SendReminder(ctx context.Context, order *domain.Order, daysRemaining int) error
	SendOverdueNotice(ctx context.Context, order *domain.Order, daysOverdue int, fee decimal.Decimal) error
	PublishFeeUpdate(ctx context.Context, change domain.FeeChange) error
}

// EmailSender is a single outbound email provider.
type EmailSender interface {
	Send(ctx context.Context, to, toName, subject, plainText string) error
}

// EventPublisher publishes keyed realtime events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}
