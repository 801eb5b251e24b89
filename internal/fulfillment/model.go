package fulfillment

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

const DefaultCarrier = "NexoExpress"

var (
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrPaymentExists             = errors.New("payment already recorded for this order")
	ErrShipmentNotFound          = errors.New("shipment not found")
	ErrShipmentExists            = errors.New("shipment already recorded for this order")
	ErrInvalidPaymentMethod      = errors.New("invalid payment method")
	ErrInvalidShipmentStatus     = errors.New("invalid shipment status")
	ErrInvalidShipmentTransition = errors.New("invalid shipment status transition")
	ErrShipmentStatusConflict    = errors.New("shipment status changed concurrently")
	ErrInvalidTracking           = errors.New("tracking number and carrier are required")
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodPayPal PaymentMethod = "paypal"
	MethodCash   PaymentMethod = "cash"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCard, MethodPayPal, MethodCash:
		return true
	}
	return false
}

type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "pending"
	ShipmentProcessing ShipmentStatus = "processing"
	ShipmentShipped    ShipmentStatus = "shipped"
	ShipmentInTransit  ShipmentStatus = "in_transit"
	ShipmentDelivered  ShipmentStatus = "delivered"
	ShipmentReturned   ShipmentStatus = "returned"
)

func (s ShipmentStatus) String() string {
	return string(s)
}

var shipmentTransitions = map[ShipmentStatus]map[ShipmentStatus]bool{
	ShipmentPending: {
		ShipmentProcessing: true,
	},
	ShipmentProcessing: {
		ShipmentShipped: true,
	},
	ShipmentShipped: {
		ShipmentInTransit: true,
		ShipmentDelivered: true,
		ShipmentReturned:  true,
	},
	ShipmentInTransit: {
		ShipmentDelivered: true,
		ShipmentReturned:  true,
	},
	ShipmentDelivered: {
		ShipmentReturned: true,
	},
	ShipmentReturned: {},
}

func (s ShipmentStatus) IsValid() bool {
	_, ok := shipmentTransitions[s]
	return ok
}

func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	return shipmentTransitions[s][next]
}

type Payment struct {
	ID            uuid.UUID     `json:"id"`
	OrderID       uuid.UUID     `json:"order_id"`
	UserID        uuid.UUID     `json:"user_id"`
	Amount        money.Money   `json:"amount"`
	Status        PaymentStatus `json:"status"`
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transaction_id"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Shipment struct {
	ID             uuid.UUID      `json:"id"`
	OrderID        uuid.UUID      `json:"order_id"`
	UserID         uuid.UUID      `json:"user_id"`
	Status         ShipmentStatus `json:"status"`
	TrackingNumber string         `json:"tracking_number"`
	Carrier        string         `json:"carrier"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
