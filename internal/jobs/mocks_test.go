package jobs

import (
	"context"
	"time"

	"rentflow-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) QueryOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepo) UpdateOrderStatus(ctx context.Context, id int64, expected, status domain.OrderStatus, lateFee, remaining decimal.Decimal) (*domain.Order, error) {
	args := m.Called(ctx, id, expected, status, lateFee, remaining)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) UpdateOrderFee(ctx context.Context, id int64, expectedStatus domain.OrderStatus, expectedFee, lateFee, remaining decimal.Decimal) (*domain.Order, error) {
	args := m.Called(ctx, id, expectedStatus, expectedFee, lateFee, remaining)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type MockPolicyRepo struct {
	mock.Mock
}

func (m *MockPolicyRepo) GetActive(ctx context.Context) (*domain.LateFeePolicy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LateFeePolicy), args.Error(1)
}

type MockReminderLog struct {
	mock.Mock
}

func (m *MockReminderLog) Record(ctx context.Context, orderID int64, day time.Time) (bool, error) {
	args := m.Called(ctx, orderID, day)
	return args.Bool(0), args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) SendReminder(ctx context.Context, order *domain.Order, daysRemaining int) error {
	return m.Called(ctx, order, daysRemaining).Error(0)
}

func (m *MockSink) SendOverdueNotice(ctx context.Context, order *domain.Order, daysOverdue int, fee decimal.Decimal) error {
	return m.Called(ctx, order, daysOverdue, fee).Error(0)
}

func (m *MockSink) PublishFeeUpdate(ctx context.Context, change domain.FeeChange) error {
	return m.Called(ctx, change).Error(0)
}

// dec matches a decimal argument by value rather than representation
func dec(v int64) any {
	want := decimal.NewFromInt(v)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}
