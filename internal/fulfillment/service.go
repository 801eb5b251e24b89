package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// Service is the shipment back-office.
type Service interface {
	ListShipments(ctx context.Context, status ShipmentStatus) ([]Shipment, error)
	GetShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*Shipment, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	UpdateShipmentStatus(ctx context.Context, id uuid.UUID, next ShipmentStatus) (*Shipment, error)
	UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) (*Shipment, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListShipments(ctx context.Context, status ShipmentStatus) ([]Shipment, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidShipmentStatus, status)
	}
	shipments, err := s.repo.ListShipments(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list shipments: %w", err)
	}
	return shipments, nil
}

func (s *service) GetShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*Shipment, error) {
	shipment, err := s.repo.GetShipmentByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrShipmentNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("service: failed to get shipment for order %s: %w", orderID, err)
	}
	return shipment, nil
}

func (s *service) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	payment, err := s.repo.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("service: failed to get payment for order %s: %w", orderID, err)
	}
	return payment, nil
}

func (s *service) UpdateShipmentStatus(ctx context.Context, id uuid.UUID, next ShipmentStatus) (*Shipment, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidShipmentStatus, next)
	}

	current, err := s.repo.GetShipment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrShipmentNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("service: failed to get shipment %s: %w", id, err)
	}

	if !current.Status.CanTransitionTo(next) {
		log.Warn().
			Stringer("shipment_id", id).
			Stringer("current_status", current.Status).
			Stringer("new_status", next).
			Msg("service: invalid shipment transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidShipmentTransition, current.Status, next)
	}

	if err := s.repo.UpdateShipmentStatus(ctx, id, current.Status, next); err != nil {
		if errors.Is(err, ErrShipmentNotFound) || errors.Is(err, ErrShipmentStatusConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to update shipment status: %w", err)
	}

	log.Info().Stringer("shipment_id", id).Stringer("old_status", current.Status).Stringer("new_status", next).Msg("service: shipment status updated")
	current.Status = next
	return current, nil
}

func (s *service) UpdateTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) (*Shipment, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	carrier = strings.TrimSpace(carrier)
	if trackingNumber == "" || carrier == "" {
		return nil, ErrInvalidTracking
	}

	shipment, err := s.repo.UpdateShipmentTracking(ctx, id, trackingNumber, carrier)
	if err != nil {
		if errors.Is(err, ErrShipmentNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("service: failed to update tracking for shipment %s: %w", id, err)
	}
	return shipment, nil
}
