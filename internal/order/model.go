package order

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (os OrderStatus) String() string {
	return string(os)
}

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (os OrderStatus) IsValid() bool {
	_, ok := allowedTransitions[os]
	return ok
}

func (os OrderStatus) IsTerminal() bool {
	next, ok := allowedTransitions[os]
	return ok && len(next) == 0
}

func (os OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return allowedTransitions[os][next]
}

const DefaultCountry = "Ecuador"

var ErrMissingShippingAddress = errors.New("shipping address and city are required")

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// Normalize trims the fields, applies the default country and checks the required ones.
func (a ShippingAddress) Normalize() (ShippingAddress, error) {
	a.Address = strings.TrimSpace(a.Address)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Address == "" || a.City == "" {
		return a, ErrMissingShippingAddress
	}
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a, nil
}

// OrderLine is a snapshot of the product at order time and is never re-read from the catalog.
type OrderLine struct {
	ID           uuid.UUID   `json:"id"`
	OrderID      uuid.UUID   `json:"order_id"`
	ProductID    uuid.UUID   `json:"product_id"`
	ProductName  string      `json:"product_name"`
	ProductImage string      `json:"product_image,omitempty"`
	UnitPrice    money.Money `json:"unit_price"`
	Quantity     int         `json:"quantity"`
	LineTotal    money.Money `json:"line_total"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          uuid.UUID       `json:"user_id"`
	Status          OrderStatus     `json:"status"`
	Subtotal        money.Money     `json:"subtotal"`
	Tax             money.Money     `json:"tax"`
	Shipping        money.Money     `json:"shipping"`
	Total           money.Money     `json:"total"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Lines           []OrderLine     `json:"lines,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LineDraft is a priced line ready to be written.
type LineDraft struct {
	ProductID    uuid.UUID
	ProductName  string
	ProductImage string
	UnitPrice    money.Money
	Quantity     int
	LineTotal    money.Money
}

// Draft is everything the Writer needs to persist an order. Totals are final.
type Draft struct {
	UserID          uuid.UUID
	Status          OrderStatus
	Subtotal        money.Money
	Tax             money.Money
	Shipping        money.Money
	Total           money.Money
	ShippingAddress ShippingAddress
	Lines           []LineDraft
}

type ListFilter struct {
	// Status filters by status when non-empty.
	Status OrderStatus
	// Limit caps the result when positive.
	Limit int
}

// SalesStats summarises all orders for the admin dashboard. Revenue excludes cancelled orders.
type SalesStats struct {
	Orders        int         `json:"total_orders"`
	PendingOrders int         `json:"pending_orders"`
	Revenue       money.Money `json:"total_revenue"`
}

// CustomerStats is one customer's order history in aggregate. Cancelled orders are not counted as spent.
type CustomerStats struct {
	Orders     int         `json:"orders_count"`
	TotalSpent money.Money `json:"total_spent"`
}
