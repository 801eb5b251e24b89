package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
)

type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)

	CreateShipment(ctx context.Context, s *Shipment) error
	GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error)
	GetShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*Shipment, error)
	// ListShipments returns all shipments, or only those in status when it is non-empty.
	ListShipments(ctx context.Context, status ShipmentStatus) ([]Shipment, error)
	UpdateShipmentStatus(ctx context.Context, id uuid.UUID, from, to ShipmentStatus) error
	UpdateShipmentTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) (*Shipment, error)
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(db db.DB) Repository {
	return &postgresRepository{db: db}
}

func ensureID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	newID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	*id = newID
	return nil
}

func (r *postgresRepository) CreatePayment(ctx context.Context, p *Payment) error {
	if err := ensureID(&p.ID); err != nil {
		return fmt.Errorf("repository: failed to generate payment ID: %w", err)
	}

	query := `
		INSERT INTO payments (id, order_id, user_id, amount_cents, status, method, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID, p.OrderID, p.UserID, p.Amount, string(p.Status), string(p.Method), p.TransactionID,
	).Scan(&p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "payments_order_id_key") {
			return ErrPaymentExists
		}
		return fmt.Errorf("repository: failed to insert payment for order %s: %w", p.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	query := `
		SELECT id, order_id, user_id, amount_cents, status, method, transaction_id, created_at
		FROM payments
		WHERE order_id = $1
	`
	var p Payment
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Status, &p.Method, &p.TransactionID, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment for order %s: %w", orderID, err)
	}
	return &p, nil
}

const shipmentColumns = `id, order_id, user_id, status, tracking_number, carrier, created_at, updated_at`

func scanShipment(row pgx.Row) (*Shipment, error) {
	var s Shipment
	err := row.Scan(&s.ID, &s.OrderID, &s.UserID, &s.Status, &s.TrackingNumber, &s.Carrier, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepository) CreateShipment(ctx context.Context, s *Shipment) error {
	if err := ensureID(&s.ID); err != nil {
		return fmt.Errorf("repository: failed to generate shipment ID: %w", err)
	}

	query := `
		INSERT INTO shipments (id, order_id, user_id, status, tracking_number, carrier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		s.ID, s.OrderID, s.UserID, string(s.Status), s.TrackingNumber, s.Carrier,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "shipments_order_id_key") {
			return ErrShipmentExists
		}
		return fmt.Errorf("repository: failed to insert shipment for order %s: %w", s.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) getShipmentBy(ctx context.Context, column string, id uuid.UUID) (*Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE ` + column + ` = $1`

	s, err := scanShipment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select shipment by %s %s: %w", column, id, err)
	}
	return s, nil
}

func (r *postgresRepository) GetShipment(ctx context.Context, id uuid.UUID) (*Shipment, error) {
	return r.getShipmentBy(ctx, "id", id)
}

func (r *postgresRepository) GetShipmentByOrderID(ctx context.Context, orderID uuid.UUID) (*Shipment, error) {
	return r.getShipmentBy(ctx, "order_id", orderID)
}

func (r *postgresRepository) ListShipments(ctx context.Context, status ShipmentStatus) ([]Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list shipments: %w", err)
	}
	defer rows.Close()

	shipments := make([]Shipment, 0)
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan shipment: %w", err)
		}
		shipments = append(shipments, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating shipments: %w", err)
	}
	return shipments, nil
}

func (r *postgresRepository) UpdateShipmentStatus(ctx context.Context, id uuid.UUID, from, to ShipmentStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE shipments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("repository: failed to update shipment status %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetShipment(ctx, id); err != nil {
		return err
	}
	return ErrShipmentStatusConflict
}

func (r *postgresRepository) UpdateShipmentTracking(ctx context.Context, id uuid.UUID, trackingNumber, carrier string) (*Shipment, error) {
	query := `
		UPDATE shipments SET tracking_number = $1, carrier = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + shipmentColumns

	s, err := scanShipment(r.db.QueryRow(ctx, query, trackingNumber, carrier, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("repository: failed to update shipment tracking %s: %w", id, err)
	}
	return s, nil
}
