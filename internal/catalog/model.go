package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

// LowStockThreshold is the stock level at or below which a product is reported as low.
const LowStockThreshold = 5

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductInactive    = errors.New("product is not active")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrCategoryExists     = errors.New("category with this name already exists")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrNegativeStock      = errors.New("stock cannot be negative")
	ErrInvalidProductData = errors.New("invalid product data")
	ErrStockContended     = errors.New("stock changed concurrently, try again")
)

// InsufficientStockError carries the numbers behind a rejected decrement.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Product struct {
	ID          uuid.UUID     `json:"id"`
	CategoryID  uuid.NullUUID `json:"category_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	ImageURL    string        `json:"image_url"`
	Price       money.Money   `json:"price"`
	Stock       int           `json:"stock"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// InventoryStats summarizes the catalog for the back-office dashboard.
type InventoryStats struct {
	Products         int `json:"total_products"`
	ActiveProducts   int `json:"active_products"`
	LowStockProducts int `json:"low_stock_products"`
}

// ProductFilter narrows ListProducts. Zero value lists everything.
type ProductFilter struct {
	CategoryID uuid.NullUUID
	ActiveOnly bool
}
