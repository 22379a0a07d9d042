package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/repository"
)

const orderColumns = `o.id, o.order_number, o.customer_id, COALESCE(c.name, ''), COALESCE(c.email, ''),
	o.status, o.start_date, o.end_date, o.total_amount, o.remaining_amount, o.late_fee, o.updated_at`

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CustomerEmail,
		&o.Status, &o.StartDate, &o.EndDate, &o.TotalAmount, &o.RemainingAmount, &o.LateFee, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) QueryOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	logger.EnterMethod("orderRepository.QueryOrders", "statuses", statusList(filter.Statuses))

	query := `SELECT ` + orderColumns + `
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE 1 = 1`

	var args []any
	argIndex := 1

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += fmt.Sprintf(" AND o.status = ANY($%d)", argIndex)
		args = append(args, pq.Array(statuses))
		argIndex++
	}
	if !filter.EndDateAfter.IsZero() {
		query += fmt.Sprintf(" AND o.end_date > $%d", argIndex)
		args = append(args, filter.EndDateAfter)
		argIndex++
	}
	if !filter.EndDateUntil.IsZero() {
		query += fmt.Sprintf(" AND o.end_date <= $%d", argIndex)
		args = append(args, filter.EndDateUntil)
		argIndex++
	}
	query += " ORDER BY o.end_date ASC, o.id ASC"

	logger.DatabaseCall("SELECT", "orders", "args", len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("orderRepository.QueryOrders", err)
		return nil, fmt.Errorf("%w: query orders: %w", domain.ErrTransientStore, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			logger.ExitMethodWithError("orderRepository.QueryOrders", err, "reason", "scan")
			return nil, fmt.Errorf("%w: scan order: %w", domain.ErrTransientStore, err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		logger.ExitMethodWithError("orderRepository.QueryOrders", err, "reason", "iterate")
		return nil, fmt.Errorf("%w: iterate orders: %w", domain.ErrTransientStore, err)
	}

	logger.ExitMethod("orderRepository.QueryOrders", "count", len(orders))
	return orders, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id int64, expected, status domain.OrderStatus, lateFee, remaining decimal.Decimal) (*domain.Order, error) {
	logger.EnterMethod("orderRepository.UpdateOrderStatus", "orderID", id, "from", expected, "to", status)

	query := `
		WITH o AS (
			UPDATE orders
			SET status = $1, late_fee = $2, remaining_amount = $3, updated_at = $4
			WHERE id = $5 AND status = $6
			RETURNING *
		)
		SELECT ` + orderColumns + `
		FROM o
		LEFT JOIN customers c ON c.id = o.customer_id`

	logger.DatabaseCall("UPDATE", "orders", "orderID", id)
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, status, lateFee, remaining, time.Now(), id, expected))
	return r.finishUpdate("orderRepository.UpdateOrderStatus", id, o, err)
}

func (r *orderRepository) UpdateOrderFee(ctx context.Context, id int64, expectedStatus domain.OrderStatus, expectedFee, lateFee, remaining decimal.Decimal) (*domain.Order, error) {
	logger.EnterMethod("orderRepository.UpdateOrderFee", "orderID", id, "expectedFee", expectedFee, "lateFee", lateFee)

	query := `
		WITH o AS (
			UPDATE orders
			SET late_fee = $1, remaining_amount = $2, updated_at = $3
			WHERE id = $4 AND status = $5 AND late_fee = $6
			RETURNING *
		)
		SELECT ` + orderColumns + `
		FROM o
		LEFT JOIN customers c ON c.id = o.customer_id`

	logger.DatabaseCall("UPDATE", "orders", "orderID", id)
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, lateFee, remaining, time.Now(), id, expectedStatus, expectedFee))
	return r.finishUpdate("orderRepository.UpdateOrderFee", id, o, err)
}

// finishUpdate maps a conditional update's result: no row back means the guard did not match.
func (r *orderRepository) finishUpdate(method string, id int64, o *domain.Order, err error) (*domain.Order, error) {
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("UPDATE", 0, nil, "orderID", id)
		logger.ExitMethod(method, "orderID", id, "conflict", true)
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrStatusConflict)
	}
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "orderID", id)
		logger.ExitMethodWithError(method, err, "orderID", id)
		return nil, fmt.Errorf("%w: update order %d: %w", domain.ErrTransientStore, id, err)
	}
	logger.DatabaseResult("UPDATE", 1, nil, "orderID", id)
	logger.ExitMethod(method, "orderID", id, "status", o.Status)
	return o, nil
}

// statusList renders statuses for log output.
func statusList(statuses []domain.OrderStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
