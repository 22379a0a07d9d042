package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusOverdue   OrderStatus = "overdue"
	OrderStatusReturned  OrderStatus = "returned"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusOverdue,
		OrderStatusReturned, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is the subset of a rental order the lifecycle scheduler reads and mutates.
// Customer fields are read-only here and only used to address notifications.
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      int64           `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	Status          OrderStatus     `json:"status"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	LateFee         decimal.Decimal `json:"late_fee"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderFilter narrows the candidate set of a sweep.
// Zero-valued time bounds are ignored.
type OrderFilter struct {
	Statuses     []OrderStatus
	EndDateAfter time.Time // exclusive
	EndDateUntil time.Time // inclusive
}
