package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
)

var (
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
)

type PaymentMethodType string

const (
	PaymentMethodCard   PaymentMethodType = "card"
	PaymentMethodPayPal PaymentMethodType = "paypal"
)

// SavedPaymentMethod is a customer's stored way to pay. Only the last four card digits are kept.
type SavedPaymentMethod struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	Type           PaymentMethodType `json:"type"`
	CardHolderName string            `json:"card_holder_name"`
	CardLastFour   string            `json:"card_last_four"`
	CardBrand      string            `json:"card_brand"`
	IsDefault      bool              `json:"is_default"`
	CreatedAt      time.Time         `json:"created_at"`
}

type NewPaymentMethod struct {
	Type           PaymentMethodType
	CardHolderName string
	// CardNumber may be the full number or just its tail; only the last four digits are stored.
	CardNumber string
	CardBrand  string
}

func (n NewPaymentMethod) toSaved(userID uuid.UUID) (*SavedPaymentMethod, error) {
	m := &SavedPaymentMethod{UserID: userID, Type: n.Type}
	switch n.Type {
	case PaymentMethodPayPal:
		return m, nil
	case PaymentMethodCard:
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPaymentMethod, n.Type)
	}

	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, n.CardNumber)
	if len(digits) < 4 || strings.Trim(digits, "0123456789") != "" {
		return nil, fmt.Errorf("%w: card number must contain at least four digits", ErrInvalidPaymentMethod)
	}
	m.CardHolderName = strings.TrimSpace(n.CardHolderName)
	m.CardBrand = strings.TrimSpace(n.CardBrand)
	if m.CardHolderName == "" || m.CardBrand == "" {
		return nil, fmt.Errorf("%w: card holder and brand are required", ErrInvalidPaymentMethod)
	}
	m.CardLastFour = digits[len(digits)-4:]
	return m, nil
}

type PaymentMethodRepository interface {
	// ListPaymentMethods returns the default method first, then newest first.
	ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]SavedPaymentMethod, error)
	// CreatePaymentMethod stores m and makes it the default if the user has none.
	CreatePaymentMethod(ctx context.Context, m *SavedPaymentMethod) error
	// DeletePaymentMethod removes the method and promotes the newest remaining one if it was the default.
	DeletePaymentMethod(ctx context.Context, userID, id uuid.UUID) error
	SetDefaultPaymentMethod(ctx context.Context, userID, id uuid.UUID) error
}

type postgresPaymentMethods struct {
	db db.DB
}

func NewPaymentMethodRepository(db db.DB) PaymentMethodRepository {
	return &postgresPaymentMethods{db: db}
}

const paymentMethodColumns = `id, user_id, type, card_holder_name, card_last_four, card_brand, is_default, created_at`

func (r *postgresPaymentMethods) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]SavedPaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list payment methods for user %s: %w", userID, err)
	}
	defer rows.Close()

	methods := make([]SavedPaymentMethod, 0)
	for rows.Next() {
		var m SavedPaymentMethod
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &m.CardHolderName, &m.CardLastFour, &m.CardBrand, &m.IsDefault, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan payment method: %w", err)
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating payment methods: %w", err)
	}
	return methods, nil
}

func (r *postgresPaymentMethods) CreatePaymentMethod(ctx context.Context, m *SavedPaymentMethod) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate payment method ID: %w", err)
		}
		m.ID = id
	}

	query := `
		INSERT INTO payment_methods (id, user_id, type, card_holder_name, card_last_four, card_brand, is_default)
		VALUES ($1, $2, $3, $4, $5, $6,
			NOT EXISTS (SELECT 1 FROM payment_methods WHERE user_id = $2 AND is_default))
		RETURNING is_default, created_at
	`
	err := r.db.QueryRow(ctx, query,
		m.ID, m.UserID, string(m.Type), m.CardHolderName, m.CardLastFour, m.CardBrand,
	).Scan(&m.IsDefault, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert payment method for user %s: %w", m.UserID, err)
	}
	return nil
}

// inTx runs fn in a transaction that commits when fn returns nil.
func (r *postgresPaymentMethods) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback payment method transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit payment method change: %w", commitErr)
		}
	}()
	return fn(tx)
}

func (r *postgresPaymentMethods) DeletePaymentMethod(ctx context.Context, userID, id uuid.UUID) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var wasDefault bool
		err := tx.QueryRow(ctx,
			`DELETE FROM payment_methods WHERE id = $1 AND user_id = $2 RETURNING is_default`,
			id, userID).Scan(&wasDefault)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPaymentMethodNotFound
			}
			return fmt.Errorf("repository: failed to delete payment method %s: %w", id, err)
		}
		if !wasDefault {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE payment_methods SET is_default = TRUE
			WHERE id = (SELECT id FROM payment_methods WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1)
		`, userID)
		if err != nil {
			return fmt.Errorf("repository: failed to promote default payment method: %w", err)
		}
		return nil
	})
}

func (r *postgresPaymentMethods) SetDefaultPaymentMethod(ctx context.Context, userID, id uuid.UUID) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		// Clear first: the partial unique index allows one default per user.
		_, err := tx.Exec(ctx,
			`UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1 AND is_default AND id <> $2`,
			userID, id)
		if err != nil {
			return fmt.Errorf("repository: failed to clear default payment method: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE payment_methods SET is_default = TRUE WHERE id = $1 AND user_id = $2`,
			id, userID)
		if err != nil {
			return fmt.Errorf("repository: failed to set default payment method %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPaymentMethodNotFound
		}
		return nil
	})
}

// Wallet manages a customer's saved payment methods.
type Wallet struct {
	repo PaymentMethodRepository
}

func NewWallet(repo PaymentMethodRepository) *Wallet {
	return &Wallet{repo: repo}
}

func (w *Wallet) List(ctx context.Context, userID uuid.UUID) ([]SavedPaymentMethod, error) {
	methods, err := w.repo.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to list payment methods: %w", err)
	}
	return methods, nil
}

func (w *Wallet) Add(ctx context.Context, userID uuid.UUID, n NewPaymentMethod) (*SavedPaymentMethod, error) {
	m, err := n.toSaved(userID)
	if err != nil {
		return nil, err
	}
	if err := w.repo.CreatePaymentMethod(ctx, m); err != nil {
		return nil, fmt.Errorf("wallet: failed to save payment method: %w", err)
	}

	log.Info().Stringer("user_id", userID).Str("type", string(m.Type)).Bool("default", m.IsDefault).Msg("Payment method added")
	return m, nil
}

func (w *Wallet) Remove(ctx context.Context, userID, id uuid.UUID) error {
	if err := w.repo.DeletePaymentMethod(ctx, userID, id); err != nil {
		if errors.Is(err, ErrPaymentMethodNotFound) {
			return ErrPaymentMethodNotFound
		}
		return fmt.Errorf("wallet: failed to remove payment method: %w", err)
	}
	return nil
}

func (w *Wallet) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	if err := w.repo.SetDefaultPaymentMethod(ctx, userID, id); err != nil {
		if errors.Is(err, ErrPaymentMethodNotFound) {
			return ErrPaymentMethodNotFound
		}
		return fmt.Errorf("wallet: failed to set default payment method: %w", err)
	}
	return nil
}
