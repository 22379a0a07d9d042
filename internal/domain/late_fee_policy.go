package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LateFeePolicy describes how late fees accrue once a rental passes its return date.
// Percentages are expressed against the order's total amount.
type LateFeePolicy struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	DailyFeePercentage decimal.Decimal `json:"daily_fee_percentage"`
	MaxFeePercentage   decimal.Decimal `json:"max_fee_percentage"`
	GracePeriodHours   int             `json:"grace_period_hours"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Validate checks the policy's numeric constraints.
func (p *LateFeePolicy) Validate() error {
	if p.DailyFeePercentage.IsNegative() {
		return fmt.Errorf("%w: daily fee percentage must be >= 0, got %s", ErrInvalidPolicy, p.DailyFeePercentage)
	}
	if p.MaxFeePercentage.IsNegative() {
		return fmt.Errorf("%w: max fee percentage must be >= 0, got %s", ErrInvalidPolicy, p.MaxFeePercentage)
	}
	if p.MaxFeePercentage.LessThan(p.DailyFeePercentage) {
		return fmt.Errorf("%w: max fee percentage %s is below daily fee percentage %s",
			ErrInvalidPolicy, p.MaxFeePercentage, p.DailyFeePercentage)
	}
	if p.GracePeriodHours < 0 {
		return fmt.Errorf("%w: grace period hours must be >= 0, got %d", ErrInvalidPolicy, p.GracePeriodHours)
	}
	return nil
}

// GracePeriodDays returns the grace period as a fractional number of days.
func (p *LateFeePolicy) GracePeriodDays() decimal.Decimal {
	return decimal.NewFromInt(int64(p.GracePeriodHours)).Div(decimal.NewFromInt(24))
}

// ReminderWindow is how many days ahead of the return date a reminder is due.
type ReminderWindow struct {
	DaysBeforeReturn int
}
