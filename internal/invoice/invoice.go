package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

const (
	StatusPaid            = "paid"
	DefaultNumberAttempts = 3
)

var (
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceExists          = errors.New("invoice already exists for this order")
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")
	ErrInvoiceNumberExhausted = errors.New("could not generate a unique invoice number")
)

// Invoice is an immutable snapshot of an order's committed totals.
type Invoice struct {
	ID            uuid.UUID   `json:"id"`
	OrderID       uuid.UUID   `json:"order_id"`
	UserID        uuid.UUID   `json:"user_id"`
	InvoiceNumber string      `json:"invoice_number"`
	Subtotal      money.Money `json:"subtotal"`
	Tax           money.Money `json:"tax"`
	Total         money.Money `json:"total"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(db db.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateInvoice(ctx context.Context, inv *Invoice) error {
	query := `
		INSERT INTO invoices (id, order_id, user_id, invoice_number, subtotal_cents, tax_cents, total_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		inv.ID, inv.OrderID, inv.UserID, inv.InvoiceNumber, inv.Subtotal, inv.Tax, inv.Total, inv.Status,
	).Scan(&inv.CreatedAt)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "invoices_invoice_number_key"):
			return ErrDuplicateInvoiceNumber
		case db.IsUniqueViolation(err, "invoices_order_id_key"):
			return ErrInvoiceExists
		}
		return fmt.Errorf("repository: failed to insert invoice for order %s: %w", inv.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) GetInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*Invoice, error) {
	query := `
		SELECT id, order_id, user_id, invoice_number, subtotal_cents, tax_cents, total_cents, status, created_at
		FROM invoices
		WHERE order_id = $1
	`
	var inv Invoice
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&inv.ID, &inv.OrderID, &inv.UserID, &inv.InvoiceNumber, &inv.Subtotal, &inv.Tax, &inv.Total, &inv.Status, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("repository: failed to select invoice for order %s: %w", orderID, err)
	}
	return &inv, nil
}

// NumberSource produces candidate invoice numbers, e.g. a refnum.Generator.
type NumberSource interface {
	Next() (string, error)
}

// Source is the committed order an invoice is derived from.
type Source struct {
	OrderID  uuid.UUID
	UserID   uuid.UUID
	Subtotal money.Money
	Tax      money.Money
	Total    money.Money
}

type Generator struct {
	repo        Repository
	numbers     NumberSource
	maxAttempts int
}

func NewGenerator(repo Repository, numbers NumberSource) *Generator {
	return &Generator{repo: repo, numbers: numbers, maxAttempts: DefaultNumberAttempts}
}

func (g *Generator) Generate(ctx context.Context, src Source) (*Invoice, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("invoice: failed to generate ID: %w", err)
	}

	inv := &Invoice{
		ID:       id,
		OrderID:  src.OrderID,
		UserID:   src.UserID,
		Subtotal: src.Subtotal,
		Tax:      src.Tax,
		Total:    src.Total,
		Status:   StatusPaid,
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		number, err := g.numbers.Next()
		if err != nil {
			return nil, fmt.Errorf("invoice: failed to generate number: %w", err)
		}
		inv.InvoiceNumber = number

		err = g.repo.CreateInvoice(ctx, inv)
		if err == nil {
			log.Info().Stringer("order_id", src.OrderID).Str("invoice_number", number).Msg("Invoice generated")
			return inv, nil
		}
		if !errors.Is(err, ErrDuplicateInvoiceNumber) {
			return nil, fmt.Errorf("invoice: failed to create invoice: %w", err)
		}
		log.Warn().Str("invoice_number", number).Int("attempt", attempt).Msg("Invoice number collision, regenerating")
	}
	return nil, ErrInvoiceNumberExhausted
}
