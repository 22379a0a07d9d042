package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/utils"
)

// SendReturnReminders reminds customers whose delivered rentals are due back
// within the reminder window. At most one reminder per order per calendar day.
func (jr *JobRunner) SendReturnReminders(ctx context.Context) (SweepReport, error) {
	return jr.runWithRecovery(ctx, SweepReminder, func(ctx context.Context, log *slog.Logger, report *SweepReport) error {
		now := jr.now()
		window := jr.evaluator.Window()
		if window.DaysBeforeReturn <= 0 {
			log.Info("Reminder window is zero, no reminders to send")
			return nil
		}

		orders, err := jr.orders.QueryOrders(ctx, domain.OrderFilter{
			Statuses:     []domain.OrderStatus{domain.OrderStatusDelivered},
			EndDateAfter: now,
			EndDateUntil: now.Add(time.Duration(window.DaysBeforeReturn) * 24 * time.Hour),
		})
		if err != nil {
			return fmt.Errorf("failed to query reminder candidates: %w", err)
		}
		report.Candidates = len(orders)

		today := utils.CalendarDay(now.In(jr.loc))
		for i := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			order := &orders[i]

			decision, err := jr.evaluator.CheckReminder(order, now)
			if err != nil {
				handleOrderError(log, report, order, err)
				continue
			}
			if decision == nil {
				report.Skipped++
				continue
			}

			fresh, err := jr.reminders.Record(ctx, order.ID, today)
			if err != nil {
				handleOrderError(log, report, order, err)
				continue
			}
			if !fresh {
				log.Debug("Reminder already sent today", "order_id", order.ID)
				report.Skipped++
				continue
			}
			report.Applied++

			if err := jr.sink.SendReminder(ctx, order, decision.DaysRemaining); err != nil {
				log.Warn("Failed to deliver return reminder", "order_id", order.ID, "error", err)
				continue
			}
			log.Debug("Sent return reminder", "order_id", order.ID, "days_remaining", decision.DaysRemaining)
		}
		return nil
	})
}
