package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// RecentOrdersLimit is the size of the admin recent orders feed.
const RecentOrdersLimit = 5

var (
	ErrStatusAlreadySet        = errors.New("status is already set to the desired value")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

type Service interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetUserOrder returns the order only if it belongs to userID.
	GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
	RecentOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) (*Order, error)
	SalesStats(ctx context.Context) (SalesStats, error)
	// CustomerStats always has an entry for every id in userIDs, zero for customers without orders.
	CustomerStats(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]CustomerStats, error)
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{
		orderRepo: orderRepo,
	}
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return order, nil
}

func (s *service) GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		log.Warn().Stringer("order_id", orderID).Stringer("user_id", userID).Msg("service: order requested by a different user")
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}

	orders, err := s.orderRepo.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) RecentOrders(ctx context.Context) ([]Order, error) {
	return s.ListOrders(ctx, ListFilter{Limit: RecentOrdersLimit})
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) (*Order, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	currentOrder, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if currentOrder.Status == newStatus {
		return nil, ErrStatusAlreadySet
	}

	if !currentOrder.Status.CanTransitionTo(newStatus) {
		log.Warn().
			Stringer("order_id", currentOrder.ID).
			Stringer("current_status", currentOrder.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, currentOrder.Status, newStatus)
	}

	err = s.orderRepo.UpdateOrderStatus(ctx, orderID, currentOrder.Status, newStatus)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrStatusConflict) {
			log.Warn().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order changed during status update")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", currentOrder.Status).Stringer("new_status", newStatus).Msg("service: order status updated successfully")

	currentOrder.Status = newStatus
	return currentOrder, nil
}

func (s *service) SalesStats(ctx context.Context) (SalesStats, error) {
	stats, err := s.orderRepo.SalesStats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to compute sales stats")
		return SalesStats{}, fmt.Errorf("service: failed to compute sales stats: %w", err)
	}
	return stats, nil
}

func (s *service) CustomerStats(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]CustomerStats, error) {
	stats, err := s.orderRepo.CustomerStats(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to compute customer stats: %w", err)
	}
	for _, id := range userIDs {
		if _, ok := stats[id]; !ok {
			stats[id] = CustomerStats{}
		}
	}
	return stats, nil
}
