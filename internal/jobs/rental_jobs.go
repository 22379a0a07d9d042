package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"rentflow-backend/internal/domain"
)

// MarkOverdueOrders moves delivered orders past their end date to OVERDUE and
// applies the first late fee
func (jr *JobRunner) MarkOverdueOrders(ctx context.Context) (SweepReport, error) {
	return jr.runWithRecovery(ctx, SweepOverdue, func(ctx context.Context, log *slog.Logger, report *SweepReport) error {
		now := jr.now()

		policy, err := jr.activePolicy(ctx, log)
		if err != nil {
			return err
		}

		orders, err := jr.orders.QueryOrders(ctx, domain.OrderFilter{
			Statuses:     []domain.OrderStatus{domain.OrderStatusDelivered},
			EndDateUntil: now,
		})
		if err != nil {
			return fmt.Errorf("failed to query overdue candidates: %w", err)
		}
		report.Candidates = len(orders)

		for i := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			order := &orders[i]

			decision, err := jr.evaluator.CheckOverdue(order, policy, now)
			if err != nil {
				handleOrderError(log, report, order, err)
				continue
			}
			if decision == nil {
				report.Skipped++
				continue
			}

			updated, err := jr.orders.UpdateOrderStatus(ctx, order.ID,
				domain.OrderStatusDelivered, domain.OrderStatusOverdue,
				decision.Fee, decision.Remaining)
			if err != nil {
				handleOrderError(log, report, order, err)
				continue
			}
			report.Applied++

			log.Info("Marked order as overdue",
				"order_id", updated.ID,
				"order_number", updated.OrderNumber,
				"days_overdue", decision.DaysOverdue,
				"late_fee", decision.Fee.String(),
				"remaining_amount", updated.RemainingAmount.String())

			if err := jr.sink.SendOverdueNotice(ctx, updated, decision.DaysOverdue, decision.Fee); err != nil {
				log.Warn("Failed to deliver overdue notice", "order_id", updated.ID, "error", err)
			}
		}
		return nil
	})
}

// RecomputeLateFees re-evaluates the fee of every overdue order and applies
// only the increase since the last run
func (jr *JobRunner) RecomputeLateFees(ctx context.Context) (SweepReport, error) {
	return jr.runWithRecovery(ctx, SweepFeeRecompute, func(ctx context.Context, log *slog.Logger, report *SweepReport) error {
		now := jr.now()

		policy, err := jr.activePolicy(ctx, log)
		if err != nil {
			return err
		}

		orders, err := jr.orders.QueryOrders(ctx, domain.OrderFilter{
			Statuses: []domain.OrderStatus{domain.OrderStatusOverdue},
		})
		if err != nil {
			return fmt.Errorf("failed to query overdue orders: %w", err)
		}
		report.Candidates = len(orders)

		for i := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			order := &orders[i]

			decision, err := jr.evaluator.CheckFeeRecompute(order, policy, now)
			if err != nil {
				handleOrderError(log, report, order, err)
				continue
			}
			if decision == nil {
				report.Skipped++
				continue
			}

			updated, err := jr.orders.UpdateOrderFee(ctx, order.ID,
				domain.OrderStatusOverdue, decision.PreviousFee,
				decision.NewFee, decision.Remaining)
			if err != nil {
				handleOrderError(log, report, order, err)
				continue
			}
			report.Applied++

			log.Info("Updated late fee",
				"order_id", updated.ID,
				"days_overdue", decision.DaysOverdue,
				"previous_fee", decision.PreviousFee.String(),
				"late_fee", decision.NewFee.String(),
				"capped", decision.Breakdown.Capped)

			change := domain.FeeChange{
				Order:       *updated,
				PreviousFee: decision.PreviousFee,
				NewFee:      decision.NewFee,
				Delta:       decision.Delta,
			}
			if err := jr.sink.PublishFeeUpdate(ctx, change); err != nil {
				log.Warn("Failed to publish fee update", "order_id", updated.ID, "error", err)
			}
		}
		return nil
	})
}
