package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

const (
	DefaultNumberAttempts = 3
	rollbackTimeout       = 10 * time.Second
)

var (
	ErrOrderNumberExhausted = errors.New("could not generate a unique order number")
	ErrNoLines              = errors.New("order must contain at least one line")
	ErrInconsistentTotals   = errors.New("order totals are inconsistent")
	ErrInvalidStatus        = errors.New("invalid order status")
)

// NumberSource produces candidate order numbers, e.g. a refnum.Generator.
type NumberSource interface {
	Next() (string, error)
}

// Writer persists an order and its lines as one logical unit.
type Writer struct {
	repo        Repository
	numbers     NumberSource
	maxAttempts int
}

func NewWriter(repo Repository, numbers NumberSource) *Writer {
	return &Writer{repo: repo, numbers: numbers, maxAttempts: DefaultNumberAttempts}
}

func validateDraft(d Draft) error {
	if len(d.Lines) == 0 {
		return ErrNoLines
	}
	if !d.Status.IsValid() || d.Status.IsTerminal() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}

	var sum money.Money
	for _, line := range d.Lines {
		if line.Quantity <= 0 || line.UnitPrice.Mul(line.Quantity) != line.LineTotal {
			return fmt.Errorf("%w: line for product %s", ErrInconsistentTotals, line.ProductID)
		}
		sum = sum.Add(line.LineTotal)
	}
	if sum != d.Subtotal {
		return fmt.Errorf("%w: lines sum to %s, subtotal is %s", ErrInconsistentTotals, sum, d.Subtotal)
	}
	if d.Subtotal.Add(d.Tax).Add(d.Shipping) != d.Total {
		return fmt.Errorf("%w: total %s", ErrInconsistentTotals, d.Total)
	}
	if d.Tax.IsNegative() || d.Shipping.IsNegative() {
		return fmt.Errorf("%w: negative component", ErrInconsistentTotals)
	}
	return nil
}

// Write stores the order and its lines atomically, retrying with a fresh number on collision.
// If the commit was not acknowledged the order is deleted, so a failed Write never leaves an
// order behind that the caller does not know about.
func (w *Writer) Write(ctx context.Context, d Draft) (*Order, error) {
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	address, err := d.ShippingAddress.Normalize()
	if err != nil {
		return nil, err
	}

	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("writer: failed to generate order ID: %w", err)
	}

	lines := make([]OrderLine, len(d.Lines))
	for i, ld := range d.Lines {
		lineID, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("writer: failed to generate order line ID: %w", err)
		}
		lines[i] = OrderLine{
			ID:           lineID,
			OrderID:      orderID,
			ProductID:    ld.ProductID,
			ProductName:  ld.ProductName,
			ProductImage: ld.ProductImage,
			UnitPrice:    ld.UnitPrice,
			Quantity:     ld.Quantity,
			LineTotal:    ld.LineTotal,
		}
	}

	o := &Order{
		ID:              orderID,
		UserID:          d.UserID,
		Status:          d.Status,
		Subtotal:        d.Subtotal,
		Tax:             d.Tax,
		Shipping:        d.Shipping,
		Total:           d.Total,
		ShippingAddress: address,
		Lines:           lines,
	}

	if err := w.createWithUniqueNumber(ctx, o); err != nil {
		if errors.Is(err, ErrCommitFailed) {
			if rbErr := w.rollback(ctx, o.ID); rbErr != nil {
				return nil, errors.Join(err, rbErr)
			}
		}
		return nil, err
	}

	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).Stringer("status", o.Status).Msg("Order written")
	return o, nil
}

// rollback deletes an order whose commit outcome is unknown. Lines cascade with it.
func (w *Writer) rollback(ctx context.Context, orderID uuid.UUID) error {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	err := w.repo.DeleteOrder(rbCtx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to delete unacknowledged order")
		return fmt.Errorf("writer: failed to delete order %s: %w", orderID, err)
	}
	log.Warn().Stringer("order_id", orderID).Msg("Unacknowledged order deleted")
	return nil
}
