package service

import (
	"fmt"
	"time"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/utils"

	"github.com/shopspring/decimal"
)

// ReminderDecision is produced when a delivered order's return date is inside the reminder window.
type ReminderDecision struct {
	DaysRemaining int
}

// OverdueDecision moves a delivered order to overdue and applies its first late fee.
type OverdueDecision struct {
	DaysOverdue int
	Fee         decimal.Decimal
	Remaining   decimal.Decimal
	Breakdown   utils.LateFeeBreakdown
}

// FeeDecision applies the difference between the recomputed fee and the fee already charged.
type FeeDecision struct {
	DaysOverdue int
	PreviousFee decimal.Decimal
	NewFee      decimal.Decimal
	Delta       decimal.Decimal
	Remaining   decimal.Decimal
	Breakdown   utils.LateFeeBreakdown
}

// LifecycleEvaluator decides which time-driven transition, if any, applies to an order.
// It is pure: callers own every store and notification side effect.
type LifecycleEvaluator struct {
	window  domain.ReminderWindow
	feeOpts utils.FeeOptions
}

func NewLifecycleEvaluator(window domain.ReminderWindow, feeOpts utils.FeeOptions) *LifecycleEvaluator {
	return &LifecycleEvaluator{window: window, feeOpts: feeOpts}
}

// Window returns the configured reminder window.
func (e *LifecycleEvaluator) Window() domain.ReminderWindow {
	return e.window
}

// CheckReminder returns a decision when the order is delivered and due back
// within the reminder window, or nil.
func (e *LifecycleEvaluator) CheckReminder(order *domain.Order, now time.Time) (*ReminderDecision, error) {
	if order.Status != domain.OrderStatusDelivered {
		return nil, nil
	}
	if order.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: order %d has no end date", domain.ErrInvariantViolation, order.ID)
	}

	days := utils.DaysUntil(order.EndDate, now)
	if days <= 0 || days > e.window.DaysBeforeReturn {
		return nil, nil
	}
	return &ReminderDecision{DaysRemaining: days}, nil
}

// CheckOverdue returns a decision when a delivered order has crossed its return date, or nil.
func (e *LifecycleEvaluator) CheckOverdue(order *domain.Order, policy *domain.LateFeePolicy, now time.Time) (*OverdueDecision, error) {
	if order.Status != domain.OrderStatusDelivered {
		return nil, nil
	}
	if order.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: order %d has no end date", domain.ErrInvariantViolation, order.ID)
	}
	if order.EndDate.After(now) {
		return nil, nil
	}

	b, err := utils.ComputeLateFeeWithBreakdown(order, policy, now, e.feeOpts)
	if err != nil {
		return nil, err
	}

	// A fee already on the order is never charged twice.
	fee := decimal.Max(b.Fee, order.LateFee)
	return &OverdueDecision{
		DaysOverdue: b.DaysOverdue,
		Fee:         fee,
		Remaining:   order.RemainingAmount.Add(fee.Sub(order.LateFee)),
		Breakdown:   b,
	}, nil
}

// CheckFeeRecompute returns a decision when an overdue order's fee has grown, or nil.
// A recomputed fee below the stored one is ignored so late fees never decrease.
func (e *LifecycleEvaluator) CheckFeeRecompute(order *domain.Order, policy *domain.LateFeePolicy, now time.Time) (*FeeDecision, error) {
	if order.Status != domain.OrderStatusOverdue {
		return nil, nil
	}
	if order.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: order %d has no end date", domain.ErrInvariantViolation, order.ID)
	}
	if order.EndDate.After(now) {
		return nil, nil
	}

	b, err := utils.ComputeLateFeeWithBreakdown(order, policy, now, e.feeOpts)
	if err != nil {
		return nil, err
	}
	if !b.Fee.GreaterThan(order.LateFee) {
		return nil, nil
	}

	delta := b.Fee.Sub(order.LateFee)
	return &FeeDecision{
		DaysOverdue: b.DaysOverdue,
		PreviousFee: order.LateFee,
		NewFee:      b.Fee,
		Delta:       delta,
		Remaining:   order.RemainingAmount.Add(delta),
		Breakdown:   b,
	}, nil
}
