// Package checkout turns a cart into a committed order.
//
// Stock reservation and order creation form the critical path: a failure there
// releases every reservation taken by the attempt and no order is left behind.
// Once the order exists, payment, shipment, invoice, cart and event steps are
// best effort and their failures are returned as warnings for reconciliation.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
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

var (
	ErrMissingShippingAddress = order.ErrMissingShippingAddress
	ErrInvalidPaymentMethod   = fulfillment.ErrInvalidPaymentMethod
	ErrOrderCreationFailed    = errors.New("order could not be placed, nothing was charged")
	ErrConfirmationDeferred   = errors.New("order left pending until fulfillment records exist")
)

// OrderCreationError is returned when the order could not be written after stock was
// reserved. Cause is the writer failure. CompensationErr is set only if releasing the
// reserved stock also failed.
type OrderCreationError struct {
	Cause           error
	CompensationErr error
}

func (e *OrderCreationError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("%s: %v (stock release failed: %v)", ErrOrderCreationFailed, e.Cause, e.CompensationErr)
	}
	return fmt.Sprintf("%s: %v", ErrOrderCreationFailed, e.Cause)
}

func (e *OrderCreationError) Is(target error) bool {
	return target == ErrOrderCreationFailed
}

func (e *OrderCreationError) Unwrap() error {
	return e.Cause
}

// Stages of the post-commit path reported in warnings.
const (
	StagePayment      = "payment"
	StageShipment     = "shipment"
	StageInvoice      = "invoice"
	StageConfirmation = "confirmation"
	StageCart         = "cart"
	StageEvent        = "event"
)

// Warning is a soft failure after the order was committed.
type Warning struct {
	Stage string
	Err   error
}

type Request struct {
	UserID uuid.UUID
	// Lines is the cart snapshot to check out. When nil the user's stored cart is read and
	// cleared after the order commits; otherwise only the purchased products are removed from it.
	Lines           []cart.Line
	ShippingAddress order.ShippingAddress
	PaymentMethod   fulfillment.PaymentMethod
}

type Result struct {
	OrderID     uuid.UUID
	OrderNumber string
	Status      order.OrderStatus
	Pricing     pricing.Breakdown
	Payment     *fulfillment.Payment
	Shipment    *fulfillment.Shipment
	Invoice     *invoice.Invoice
	Warnings    []Warning
}

func (r *Result) NeedsReconciliation() bool {
	return len(r.Warnings) > 0
}

type CartStore interface {
	Lines(ctx context.Context, userID uuid.UUID) ([]cart.Line, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Pricer interface {
	Calculate(lines []cart.Line) (pricing.Breakdown, error)
}

type StockGate interface {
	Reserve(ctx context.Context, requests []reservation.Request) (*reservation.Set, error)
	Compensate(ctx context.Context, set *reservation.Set) error
}

type OrderWriter interface {
	Write(ctx context.Context, d order.Draft) (*order.Order, error)
}

type StatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, newStatus order.OrderStatus) error
}

type FulfillmentInitiator interface {
	Initiate(ctx context.Context, req fulfillment.Request) fulfillment.Outcome
}

type InvoiceGenerator interface {
	Generate(ctx context.Context, src invoice.Source) (*invoice.Invoice, error)
}

type Deps struct {
	Cart        CartStore
	Products    ProductLookup
	Pricing     Pricer
	Stock       StockGate
	Orders      OrderWriter
	Statuses    StatusUpdater
	Fulfillment FulfillmentInitiator
	Invoices    InvoiceGenerator
	// Events and Metrics are optional.
	Events  events.Publisher
	Metrics *metrics.Metrics
}

type Options struct {
	// StrictConfirmation creates orders as pending and confirms them only after payment
	// and shipment records were written.
	StrictConfirmation bool
	// StepTimeout bounds each post-commit step. Zero means no bound.
	StepTimeout time.Duration
}

type Orchestrator struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	return &Orchestrator{deps: deps, opts: opts, now: time.Now}
}
