package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/repository"
)

func reminderText(order *domain.Order, daysRemaining int) (string, string) {
	subject := fmt.Sprintf("Reminder: rental %s is due back in %d day(s)", order.OrderNumber, daysRemaining)
	body := fmt.Sprintf(`Dear %s,

This is a reminder that your rental %s is due back on %s, in %d day(s).

Please return the equipment on time to avoid late fees.

Thank you,
Rentflow Rentals`, order.CustomerName, order.OrderNumber, order.EndDate.Format("2006-01-02"), daysRemaining)
	return subject, body
}

func overdueText(order *domain.Order, daysOverdue int, fee decimal.Decimal) (string, string) {
	subject := fmt.Sprintf("Rental %s is overdue", order.OrderNumber)
	body := fmt.Sprintf(`Dear %s,

Your rental %s was due back on %s and is now %d day(s) overdue.

A late fee of %s has been applied to your order. Late fees continue to accrue until the equipment is returned.

Thank you,
Rentflow Rentals`, order.CustomerName, order.OrderNumber, order.EndDate.Format("2006-01-02"), daysOverdue, fee.StringFixed(2))
	return subject, body
}

type emailNotifier struct {
	sender EmailSender
}

// NewEmailNotifier sends reminder and overdue notices by email. Fee updates are not emailed.
func NewEmailNotifier(sender EmailSender) NotificationSink {
	return &emailNotifier{sender: sender}
}

func (n *emailNotifier) SendReminder(ctx context.Context, order *domain.Order, daysRemaining int) error {
	if order.CustomerEmail == "" {
		return fmt.Errorf("order %d has no customer email", order.ID)
	}
	subject, body := reminderText(order, daysRemaining)
	return n.sender.Send(ctx, order.CustomerEmail, order.CustomerName, subject, body)
}

func (n *emailNotifier) SendOverdueNotice(ctx context.Context, order *domain.Order, daysOverdue int, fee decimal.Decimal) error {
	if order.CustomerEmail == "" {
		return fmt.Errorf("order %d has no customer email", order.ID)
	}
	subject, body := overdueText(order, daysOverdue, fee)
	return n.sender.Send(ctx, order.CustomerEmail, order.CustomerName, subject, body)
}

func (n *emailNotifier) PublishFeeUpdate(ctx context.Context, change domain.FeeChange) error {
	return nil
}

type inAppNotifier struct {
	noteRepo repository.NotificationRepository
}

// NewInAppNotifier stores notices in the storefront's notification inbox.
func NewInAppNotifier(noteRepo repository.NotificationRepository) NotificationSink {
	return &inAppNotifier{noteRepo: noteRepo}
}

func (n *inAppNotifier) SendReminder(ctx context.Context, order *domain.Order, daysRemaining int) error {
	subject, body := reminderText(order, daysRemaining)
	return n.noteRepo.Create(ctx, &domain.Notification{
		CustomerID: order.CustomerID,
		OrderID:    order.ID,
		Kind:       domain.NotificationKindReturnReminder,
		Title:      subject,
		Message:    body,
		Attributes: map[string]string{
			"order_number":   order.OrderNumber,
			"days_remaining": strconv.Itoa(daysRemaining),
		},
	})
}

func (n *inAppNotifier) SendOverdueNotice(ctx context.Context, order *domain.Order, daysOverdue int, fee decimal.Decimal) error {
	subject, body := overdueText(order, daysOverdue, fee)
	return n.noteRepo.Create(ctx, &domain.Notification{
		CustomerID: order.CustomerID,
		OrderID:    order.ID,
		Kind:       domain.NotificationKindOverdueNotice,
		Title:      subject,
		Message:    body,
		Attributes: map[string]string{
			"order_number": order.OrderNumber,
			"days_overdue": strconv.Itoa(daysOverdue),
			"late_fee":     fee.StringFixed(2),
		},
	})
}

func (n *inAppNotifier) PublishFeeUpdate(ctx context.Context, change domain.FeeChange) error {
	return nil
}

type realtimeNotifier struct {
	publisher EventPublisher
	now       func() time.Time
}

// NewRealtimeNotifier publishes every transition as an OrderEvent keyed by order id.
func NewRealtimeNotifier(publisher EventPublisher) NotificationSink {
	return &realtimeNotifier{publisher: publisher, now: time.Now}
}

func (n *realtimeNotifier) event(kind domain.NotificationKind, order *domain.Order) domain.OrderEvent {
	return domain.OrderEvent{
		EventID:     uuid.NewString(),
		Kind:        kind,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		OccurredAt:  n.now().UTC(),
	}
}

func (n *realtimeNotifier) publish(ctx context.Context, ev domain.OrderEvent) error {
	return n.publisher.Publish(ctx, strconv.FormatInt(ev.OrderID, 10), ev)
}

func (n *realtimeNotifier) SendReminder(ctx context.Context, order *domain.Order, daysRemaining int) error {
	ev := n.event(domain.NotificationKindReturnReminder, order)
	ev.DaysRemaining = daysRemaining
	return n.publish(ctx, ev)
}

func (n *realtimeNotifier) SendOverdueNotice(ctx context.Context, order *domain.Order, daysOverdue int, fee decimal.Decimal) error {
	ev := n.event(domain.NotificationKindOverdueNotice, order)
	ev.DaysOverdue = daysOverdue
	ev.LateFee = &fee
	remaining := order.RemainingAmount
	ev.Remaining = &remaining
	return n.publish(ctx, ev)
}

func (n *realtimeNotifier) PublishFeeUpdate(ctx context.Context, change domain.FeeChange) error {
	ev := n.event(domain.NotificationKindFeeUpdated, &change.Order)
	prev, fee, remaining := change.PreviousFee, change.NewFee, change.Order.RemainingAmount
	ev.PreviousFee = &prev
	ev.LateFee = &fee
	ev.Remaining = &remaining
	return n.publish(ctx, ev)
}

// MultiSink fans a notification out to every configured channel. A failing
// channel does not stop the others; all failures are joined.
type MultiSink struct {
	sinks []namedSink
}

type namedSink struct {
	name string
	sink NotificationSink
}

func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

// Add registers a channel under a name used in error messages.
func (m *MultiSink) Add(name string, sink NotificationSink) *MultiSink {
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
	return m
}

// Channels returns the registered channel names in order.
func (m *MultiSink) Channels() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.name
	}
	return names
}

func (m *MultiSink) each(fn func(NotificationSink) error) error {
	var errs []error
	for _, s := range m.sinks {
		if err := fn(s.sink); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrNotificationDelivery, errors.Join(errs...))
}

func (m *MultiSink) SendReminder(ctx context.Context, order *domain.Order, daysRemaining int) error {
	return m.each(func(s NotificationSink) error { return s.SendReminder(ctx, order, daysRemaining) })
}

func (m *MultiSink) SendOverdueNotice(ctx context.Context, order *domain.Order, daysOverdue int, fee decimal.Decimal) error {
	return m.each(func(s NotificationSink) error { return s.SendOverdueNotice(ctx, order, daysOverdue, fee) })
}

func (m *MultiSink) PublishFeeUpdate(ctx context.Context, change domain.FeeChange) error {
	return m.each(func(s NotificationSink) error { return s.PublishFeeUpdate(ctx, change) })
}
