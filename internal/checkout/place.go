package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/events"
	"github.com/vasiliy-maslov/nexoshop/internal/fulfillment"
	"github.com/vasiliy-maslov/nexoshop/internal/invoice"
	"github.com/vasiliy-maslov/nexoshop/internal/metrics"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
	"github.com/vasiliy-maslov/nexoshop/internal/pricing"
	"github.com/vasiliy-maslov/nexoshop/internal/reservation"
)

// PlaceOrder runs the whole checkout for one user.
//
// Validation, pricing and stock errors are returned before anything is written.
// A writer failure releases the reserved stock and returns *OrderCreationError.
// Any other failure after the order exists is reported in Result.Warnings.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	start := o.now()

	res, err := o.placeOrder(ctx, req)

	outcome := metrics.OutcomePlaced
	switch {
	case errors.Is(err, ErrOrderCreationFailed):
		outcome = metrics.OutcomeFailed
	case err != nil:
		outcome = metrics.OutcomeRejected
	case res.NeedsReconciliation():
		outcome = metrics.OutcomeWithWarnings
	}
	o.deps.Metrics.ObserveCheckout(outcome, o.now().Sub(start))
	return res, err
}

func (o *Orchestrator) placeOrder(ctx context.Context, req Request) (*Result, error) {
	address, err := req.ShippingAddress.Normalize()
	if err != nil {
		return nil, err
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	lines := req.Lines
	if lines == nil {
		lines, err = o.deps.Cart.Lines(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("checkout: failed to read cart: %w", err)
		}
	}

	lines, err = o.snapshotLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	breakdown, err := o.deps.Pricing.Calculate(lines)
	if err != nil {
		return nil, err
	}

	requests := make([]reservation.Request, len(lines))
	for i, l := range lines {
		requests[i] = reservation.Request{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	reserved, err := o.deps.Stock.Reserve(ctx, requests)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", req.UserID).Msg("Checkout rejected: stock reservation failed")
		return nil, err
	}

	status := order.StatusConfirmed
	if o.opts.StrictConfirmation {
		status = order.StatusPending
	}

	draft := order.Draft{
		UserID:          req.UserID,
		Status:          status,
		Subtotal:        breakdown.Subtotal,
		Tax:             breakdown.Tax,
		Shipping:        breakdown.Shipping,
		Total:           breakdown.GrandTotal,
		ShippingAddress: address,
		Lines:           make([]order.LineDraft, len(lines)),
	}
	for i, l := range lines {
		draft.Lines[i] = order.LineDraft{
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineTotal:    breakdown.LineTotals[i],
		}
	}

	created, err := o.deps.Orders.Write(ctx, draft)
	if err != nil {
		compErr := o.deps.Stock.Compensate(ctx, reserved)
		o.deps.Metrics.RecordCompensation(compErr)
		if compErr != nil {
			log.Error().Err(compErr).Stringer("user_id", req.UserID).Msg("Stock release after failed order write did not complete")
		}
		log.Error().Err(err).Stringer("user_id", req.UserID).Msg("Checkout failed: order could not be written")
		return nil, &OrderCreationError{Cause: err, CompensationErr: compErr}
	}

	result := &Result{
		OrderID:     created.ID,
		OrderNumber: created.OrderNumber,
		Status:      created.Status,
		Pricing:     breakdown,
	}
	o.finish(ctx, req, created, result)

	log.Info().
		Stringer("order_id", result.OrderID).
		Str("order_number", result.OrderNumber).
		Stringer("status", result.Status).
		Int("warnings", len(result.Warnings)).
		Msg("Order placed")
	return result, nil
}

// snapshotLines re-reads name, price and image from the catalog. Client-held prices are never used.
func (o *Orchestrator) snapshotLines(ctx context.Context, lines []cart.Line) ([]cart.Line, error) {
	if len(lines) == 0 {
		return nil, pricing.ErrEmptyCart
	}

	out := make([]cart.Line, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s quantity %d", pricing.ErrInvalidQuantity, l.ProductID, l.Quantity)
		}

		p, err := o.deps.Products.GetProduct(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, fmt.Errorf("checkout: product %s: %w", l.ProductID, catalog.ErrProductNotFound)
			}
			return nil, fmt.Errorf("checkout: failed to load product %s: %w", l.ProductID, err)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("checkout: product %s: %w", l.ProductID, catalog.ErrProductInactive)
		}

		out[i] = cart.Line{
			ProductID:    p.ID,
			Quantity:     l.Quantity,
			UnitPrice:    p.Price,
			ProductName:  p.Name,
			ProductImage: p.ImageURL,
		}
	}
	return out, nil
}

// finish runs the post-commit steps. They use a context detached from the caller so an
// abandoned request still completes its bookkeeping.
func (o *Orchestrator) finish(ctx context.Context, req Request, created *order.Order, result *Result) {
	ctx = context.WithoutCancel(ctx)

	warn := func(stage string, err error) {
		o.deps.Metrics.RecordWarning(stage)
		log.Error().Err(err).Stringer("order_id", created.ID).Str("stage", stage).Msg("Post-commit checkout step failed")
		result.Warnings = append(result.Warnings, Warning{Stage: stage, Err: err})
	}

	outcome := o.deps.Fulfillment.Initiate(ctx, fulfillment.Request{
		OrderID: created.ID,
		UserID:  created.UserID,
		Amount:  created.Total,
		Method:  req.PaymentMethod,
	})
	result.Payment = outcome.Payment
	result.Shipment = outcome.Shipment
	if outcome.PaymentErr != nil {
		warn(StagePayment, outcome.PaymentErr)
	}
	if outcome.ShipmentErr != nil {
		warn(StageShipment, outcome.ShipmentErr)
	}

	err := o.step(ctx, func(ctx context.Context) error {
		inv, err := o.deps.Invoices.Generate(ctx, invoice.Source{
			OrderID:  created.ID,
			UserID:   created.UserID,
			Subtotal: created.Subtotal,
			Tax:      created.Tax,
			Total:    created.Total,
		})
		result.Invoice = inv
		return err
	})
	if err != nil {
		warn(StageInvoice, err)
	}

	if created.Status == order.StatusPending {
		if outcome.Err() != nil {
			warn(StageConfirmation, ErrConfirmationDeferred)
		} else {
			err := o.step(ctx, func(ctx context.Context) error {
				return o.deps.Statuses.UpdateOrderStatus(ctx, created.ID, order.StatusPending, order.StatusConfirmed)
			})
			if err != nil {
				warn(StageConfirmation, err)
			} else {
				result.Status = order.StatusConfirmed
			}
		}
	}

	if err := o.step(ctx, func(ctx context.Context) error { return o.emptyCart(ctx, req, created) }); err != nil {
		warn(StageCart, err)
	}

	err = o.step(ctx, func(ctx context.Context) error {
		return o.deps.Events.PublishOrderPlaced(ctx, events.OrderPlaced{
			OrderID:     created.ID,
			OrderNumber: created.OrderNumber,
			UserID:      created.UserID,
			Total:       created.Total,
			PlacedAt:    o.placedAt(created),
		})
	})
	if err != nil {
		warn(StageEvent, err)
	}
}

// emptyCart clears the stored cart when it was the checkout source. For explicit lines it
// removes only the purchased products and leaves the rest of the cart alone.
func (o *Orchestrator) emptyCart(ctx context.Context, req Request, created *order.Order) error {
	if req.Lines == nil {
		return o.deps.Cart.Clear(ctx, req.UserID)
	}

	var errs []error
	seen := make(map[uuid.UUID]bool, len(created.Lines))
	for _, l := range created.Lines {
		if seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		if err := o.deps.Cart.Remove(ctx, req.UserID, l.ProductID); err != nil && !errors.Is(err, cart.ErrLineNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) placedAt(created *order.Order) time.Time {
	if created.CreatedAt.IsZero() {
		return o.now()
	}
	return created.CreatedAt
}

func (o *Orchestrator) step(ctx context.Context, fn func(context.Context) error) error {
	if o.opts.StepTimeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, o.opts.StepTimeout)
	defer cancel()
	return fn(stepCtx)
}
