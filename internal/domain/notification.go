package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type NotificationKind string

const (
	NotificationKindReturnReminder NotificationKind = "return_reminder"
	NotificationKindOverdueNotice  NotificationKind = "overdue_notice"
	NotificationKindFeeUpdated     NotificationKind = "late_fee_updated"
)

// Notification is an in-app message shown to the customer in the storefront.
type Notification struct {
	ID         int64             `json:"id"`
	CustomerID int64             `json:"customer_id"`
	OrderID    int64             `json:"order_id"`
	Kind       NotificationKind  `json:"kind"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	IsRead     bool              `json:"is_read"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
}

// OrderEvent is the realtime payload published when the scheduler changes or
// flags an order.
type OrderEvent struct {
	EventID       string           `json:"event_id"`
	Kind          NotificationKind `json:"kind"`
	OrderID       int64            `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	CustomerID    int64            `json:"customer_id"`
	Status        OrderStatus      `json:"status"`
	DaysRemaining int              `json:"days_remaining,omitempty"`
	DaysOverdue   int              `json:"days_overdue,omitempty"`
	PreviousFee   *decimal.Decimal `json:"previous_fee,omitempty"`
	LateFee       *decimal.Decimal `json:"late_fee,omitempty"`
	Remaining     *decimal.Decimal `json:"remaining_amount,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// FeeChange describes a late fee recomputation that was persisted.
type FeeChange struct {
	Order       Order
	PreviousFee decimal.Decimal
	NewFee      decimal.Decimal
	Delta       decimal.Decimal
}
