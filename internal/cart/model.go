package cart

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

var (
	ErrLineNotFound       = errors.New("cart line not found")
	ErrInvalidQuantity    = errors.New("cart quantity must be at least 1")
	ErrProductUnavailable = errors.New("product is not available")
)

// Line is one product pending purchase. UnitPrice, ProductName and ProductImage are
// snapshots taken when the product was added.
type Line struct {
	ProductID    uuid.UUID   `json:"product_id"`
	Quantity     int         `json:"quantity"`
	UnitPrice    money.Money `json:"unit_price"`
	ProductName  string      `json:"product_name"`
	ProductImage string      `json:"product_image,omitempty"`
}

// Store keeps the active cart of every user.
type Store interface {
	Lines(ctx context.Context, userID uuid.UUID) ([]Line, error)
	// Add merges line into the cart, summing quantities for a product already present,
	// and returns the merged line.
	Add(ctx context.Context, userID uuid.UUID, line Line) (Line, error)
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}
