package utils

import (
	"fmt"
	"time"

	"rentflow-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultFeePlaces is the number of decimal places late fees are rounded to.
const DefaultFeePlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// FeeOptions carries the configuration-level inputs of the fee calculation.
type FeeOptions struct {
	// FallbackPerDay is the flat fee charged per late day when no policy is active.
	FallbackPerDay decimal.Decimal
	// Places is the rounding precision of the returned fee.
	Places int32
}

// LateFeeBreakdown provides the intermediate values of a fee computation
type LateFeeBreakdown struct {
	DaysOverdue  int
	GraceDays    decimal.Decimal
	BillableDays decimal.Decimal
	DailyFee     decimal.Decimal
	RawFee       decimal.Decimal
	Cap          decimal.Decimal
	Capped       bool
	UsedFallback bool
	Fee          decimal.Decimal
}

// ComputeLateFee returns the cumulative late fee owed for order at now.
// The fee is always recomputed from scratch so repeated calls never compound.
func ComputeLateFee(order *domain.Order, policy *domain.LateFeePolicy, now time.Time, opts FeeOptions) (decimal.Decimal, error) {
	b, err := ComputeLateFeeWithBreakdown(order, policy, now, opts)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Fee, nil
}

// ComputeLateFeeWithBreakdown is ComputeLateFee with the intermediate values exposed.
func ComputeLateFeeWithBreakdown(order *domain.Order, policy *domain.LateFeePolicy, now time.Time, opts FeeOptions) (LateFeeBreakdown, error) {
	if order == nil {
		return LateFeeBreakdown{}, fmt.Errorf("%w: nil order", domain.ErrInvariantViolation)
	}
	if order.EndDate.IsZero() {
		return LateFeeBreakdown{}, fmt.Errorf("%w: order %d has no end date", domain.ErrInvariantViolation, order.ID)
	}
	if order.TotalAmount.IsNegative() {
		return LateFeeBreakdown{}, fmt.Errorf("%w: order %d has negative total amount %s",
			domain.ErrInvariantViolation, order.ID, order.TotalAmount)
	}

	b := LateFeeBreakdown{
		DaysOverdue:  DaysOverdue(order.EndDate, now),
		GraceDays:    decimal.Zero,
		BillableDays: decimal.Zero,
		DailyFee:     decimal.Zero,
		RawFee:       decimal.Zero,
		Cap:          decimal.Zero,
		Fee:          decimal.Zero,
	}
	if b.DaysOverdue <= 0 {
		return b, nil
	}

	days := decimal.NewFromInt(int64(b.DaysOverdue))

	// Flat fallback: no percentage, no grace period, no cap
	if policy == nil || !policy.IsActive {
		if opts.FallbackPerDay.IsNegative() {
			return LateFeeBreakdown{}, fmt.Errorf("%w: negative fallback fee %s", domain.ErrInvariantViolation, opts.FallbackPerDay)
		}
		b.UsedFallback = true
		b.BillableDays = days
		b.DailyFee = opts.FallbackPerDay
		b.RawFee = opts.FallbackPerDay.Mul(days)
		b.Fee = b.RawFee.Round(opts.Places)
		return b, nil
	}

	if err := policy.Validate(); err != nil {
		return LateFeeBreakdown{}, fmt.Errorf("%w: policy %d: %w", domain.ErrInvariantViolation, policy.ID, err)
	}

	b.GraceDays = policy.GracePeriodDays()
	if days.LessThanOrEqual(b.GraceDays) {
		return b, nil
	}

	b.BillableDays = days.Sub(b.GraceDays)
	b.DailyFee = order.TotalAmount.Mul(policy.DailyFeePercentage).Div(hundred)
	b.RawFee = b.DailyFee.Mul(b.BillableDays)
	b.Cap = order.TotalAmount.Mul(policy.MaxFeePercentage).Div(hundred)

	fee := b.RawFee
	if fee.GreaterThan(b.Cap) {
		fee = b.Cap
		b.Capped = true
	}

	// Rounding half-up could push a fee just under the cap over it.
	fee = fee.Round(opts.Places)
	if ceiling := b.Cap.RoundFloor(opts.Places); fee.GreaterThan(ceiling) {
		fee = ceiling
	}
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	b.Fee = fee
	return b, nil
}
