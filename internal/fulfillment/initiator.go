package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

// Request identifies the committed order that fulfillment records are created for.
type Request struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Amount  money.Money
	Method  PaymentMethod
}

// Outcome reports each record independently. A failed record never undoes the other one.
type Outcome struct {
	Payment     *Payment
	Shipment    *Shipment
	PaymentErr  error
	ShipmentErr error
}

func (o Outcome) Err() error {
	return errors.Join(o.PaymentErr, o.ShipmentErr)
}

// Initiator records the settled payment and opens the shipment for an order.
type Initiator struct {
	repo    Repository
	now     func() time.Time
	carrier string
	timeout time.Duration
}

type InitiatorOption func(*Initiator)

func WithClock(now func() time.Time) InitiatorOption {
	return func(i *Initiator) { i.now = now }
}

// WithStepTimeout bounds each record write.
func WithStepTimeout(d time.Duration) InitiatorOption {
	return func(i *Initiator) { i.timeout = d }
}

func NewInitiator(repo Repository, opts ...InitiatorOption) *Initiator {
	i := &Initiator{repo: repo, now: time.Now, carrier: DefaultCarrier}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Initiator) Initiate(ctx context.Context, req Request) Outcome {
	var out Outcome

	method := req.Method
	if method == "" {
		method = MethodCard
	}
	stamp := strconv.FormatInt(i.now().UnixMilli(), 10)

	if !method.IsValid() {
		out.PaymentErr = fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	} else {
		payment := &Payment{
			OrderID:       req.OrderID,
			UserID:        req.UserID,
			Amount:        req.Amount,
			Status:        PaymentCompleted,
			Method:        method,
			TransactionID: "TXN-" + stamp,
		}
		if err := i.withTimeout(ctx, func(ctx context.Context) error { return i.repo.CreatePayment(ctx, payment) }); err != nil {
			out.PaymentErr = fmt.Errorf("fulfillment: failed to record payment: %w", err)
		} else {
			out.Payment = payment
		}
	}

	shipment := &Shipment{
		OrderID:        req.OrderID,
		UserID:         req.UserID,
		Status:         ShipmentProcessing,
		TrackingNumber: "NEXO-" + stamp,
		Carrier:        i.carrier,
	}
	if err := i.withTimeout(ctx, func(ctx context.Context) error { return i.repo.CreateShipment(ctx, shipment) }); err != nil {
		out.ShipmentErr = fmt.Errorf("fulfillment: failed to create shipment: %w", err)
	} else {
		out.Shipment = shipment
	}

	if err := out.Err(); err != nil {
		log.Error().Err(err).Stringer("order_id", req.OrderID).Msg("Fulfillment records incomplete")
	} else {
		log.Info().Stringer("order_id", req.OrderID).Str("tracking_number", shipment.TrackingNumber).Msg("Fulfillment initiated")
	}
	return out
}

func (i *Initiator) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if i.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return fn(callCtx)
}
