package order_test

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateOrder(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, newStatus order.OrderStatus) error {
	return m.Called(ctx, orderID, from, newStatus).Error(0)
}

func (m *MockRepository) SalesStats(ctx context.Context) (order.SalesStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(order.SalesStats), args.Error(1)
}

func (m *MockRepository) CustomerStats(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]order.CustomerStats, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]order.CustomerStats), args.Error(1)
}

// sequenceNumbers hands out fixed numbers in order.
type sequenceNumbers struct {
	numbers []string
	calls   int
}

func (s *sequenceNumbers) Next() (string, error) {
	n := s.numbers[s.calls%len(s.numbers)]
	s.calls++
	return n, nil
}
