package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrStatusConflict       = errors.New("order status changed concurrently")
	ErrCommitFailed         = errors.New("order commit outcome unknown")
)

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
	// UpdateOrderStatus moves the order to newStatus only if it is still in from.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, newStatus OrderStatus) error
	SalesStats(ctx context.Context) (SalesStats, error)
	// CustomerStats returns stats keyed by user for every user in userIDs that has at least one order.
	CustomerStats(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]CustomerStats, error)
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(db db.DB) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, order_number, user_id, status, subtotal_cents, tax_cents, shipping_cents, total_cents,
	shipping_address, shipping_city, shipping_postal_code, shipping_country, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.Subtotal,
		&o.Tax,
		&o.Shipping,
		&o.Total,
		&o.ShippingAddress.Address,
		&o.ShippingAddress.City,
		&o.ShippingAddress.PostalCode,
		&o.ShippingAddress.Country,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts the order row and all of o.Lines in one transaction, so either the
// order exists with every line or nothing is stored.
func (r *postgresRepository) CreateOrder(ctx context.Context, o *Order) (err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("Failed to rollback order transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("%w: %w", ErrCommitFailed, commitErr)
		}
	}()

	orderQuery := `
		INSERT INTO orders (id, order_number, user_id, status, subtotal_cents, tax_cents, shipping_cents, total_cents,
			shipping_address, shipping_city, shipping_postal_code, shipping_country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, orderQuery,
		o.ID,
		o.OrderNumber,
		o.UserID,
		string(o.Status),
		o.Subtotal,
		o.Tax,
		o.Shipping,
		o.Total,
		o.ShippingAddress.Address,
		o.ShippingAddress.City,
		o.ShippingAddress.PostalCode,
		o.ShippingAddress.Country,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "orders_order_number_key") {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_name, product_image, unit_price_cents, quantity, line_total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		err = tx.QueryRow(ctx, lineQuery,
			line.ID,
			o.ID,
			line.ProductID,
			line.ProductName,
			line.ProductImage,
			line.UnitPrice,
			line.Quantity,
			line.LineTotal,
		).Scan(&line.CreatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order line for product %s: %w", line.ProductID, err)
		}
	}
	return nil
}

func (r *postgresRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	lines, err := r.linesByOrderIDs(ctx, []uuid.UUID{orderID})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[orderID]
	if order.Lines == nil {
		order.Lines = make([]OrderLine, 0)
	}

	return order, nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	return r.collectWithLines(ctx, rows)
}

func (r *postgresRepository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list orders: %w", err)
	}
	return r.collectWithLines(ctx, rows)
}

func (r *postgresRepository) collectWithLines(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	defer rows.Close()

	orders := make([]Order, 0)
	var orderIDs []uuid.UUID
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}
	rows.Close()

	if len(orderIDs) == 0 {
		return orders, nil
	}

	lines, err := r.linesByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
		if orders[i].Lines == nil {
			orders[i].Lines = make([]OrderLine, 0)
		}
	}
	return orders, nil
}

func (r *postgresRepository) linesByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderLine, error) {
	query := `
		SELECT id, order_id, product_id, product_name, product_image, unit_price_cents, quantity, line_total_cents, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[uuid.UUID][]OrderLine, len(orderIDs))
	for rows.Next() {
		var line OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.ProductName,
			&line.ProductImage,
			&line.UnitPrice,
			&line.Quantity,
			&line.LineTotal,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		lines[line.OrderID] = append(lines[line.OrderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order lines: %w", err)
	}
	return lines, nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, newStatus OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), orderID, string(from))
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("repository: failed to check order %s: %w", orderID, err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrStatusConflict
}

func (r *postgresRepository) SalesStats(ctx context.Context) (SalesStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ($1, $2)),
			COALESCE(SUM(total_cents) FILTER (WHERE status <> $3), 0)::BIGINT
		FROM orders
	`
	var stats SalesStats
	err := r.db.QueryRow(ctx, query,
		string(StatusPending), string(StatusProcessing), string(StatusCancelled),
	).Scan(&stats.Orders, &stats.PendingOrders, &stats.Revenue)
	if err != nil {
		return SalesStats{}, fmt.Errorf("repository: failed to compute sales stats: %w", err)
	}
	return stats, nil
}

func (r *postgresRepository) CustomerStats(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]CustomerStats, error) {
	stats := make(map[uuid.UUID]CustomerStats, len(userIDs))
	if len(userIDs) == 0 {
		return stats, nil
	}

	query := `
		SELECT user_id, COUNT(*), COALESCE(SUM(total_cents) FILTER (WHERE status <> $2), 0)::BIGINT
		FROM orders
		WHERE user_id = ANY($1)
		GROUP BY user_id
	`
	rows, err := r.db.Query(ctx, query, userIDs, string(StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query customer stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID uuid.UUID
			s      CustomerStats
		)
		if err := rows.Scan(&userID, &s.Orders, &s.TotalSpent); err != nil {
			return nil, fmt.Errorf("repository: failed to scan customer stats: %w", err)
		}
		stats[userID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating customer stats: %w", err)
	}
	return stats, nil
}
