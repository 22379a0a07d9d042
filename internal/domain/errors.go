package domain

import "errors"

var (
	// ErrTransientStore marks store queries or writes that failed and should be retried on the next tick.
	ErrTransientStore = errors.New("transient store error")
	// ErrStatusConflict is returned by conditional updates when the stored row no longer matches the expected state.
	ErrStatusConflict = errors.New("order changed concurrently")
	// ErrNotificationDelivery wraps failures of any notification sink.
	ErrNotificationDelivery = errors.New("notification delivery failed")
	// ErrNoActivePolicy is reported when fees fall back to the flat per-day rate.
	ErrNoActivePolicy = errors.New("no active late fee policy")
	// ErrInvalidPolicy is returned by LateFeePolicy.Validate.
	ErrInvalidPolicy = errors.New("invalid late fee policy")
	// ErrInvariantViolation flags an order that must be skipped and reviewed manually.
	ErrInvariantViolation = errors.New("order invariant violation")
)
