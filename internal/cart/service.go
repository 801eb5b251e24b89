package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
)

// ProductLookup is the catalog read the cart needs to snapshot a product.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Service interface {
	Lines(ctx context.Context, userID uuid.UUID) ([]Line, error)
	Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (Line, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	store    Store
	products ProductLookup
}

func NewService(store Store, products ProductLookup) Service {
	return &service{store: store, products: products}
}

func (s *service) Lines(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	return s.store.Lines(ctx, userID)
}

// Add snapshots the product's current name, price and image and merges the quantity
// into an existing line for the same product.
func (s *service) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return Line{}, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
		}
		return Line{}, fmt.Errorf("cart: failed to look up product %s: %w", productID, err)
	}
	if !product.IsActive {
		return Line{}, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}

	line, err := s.store.Add(ctx, userID, Line{
		ProductID:    product.ID,
		Quantity:     quantity,
		UnitPrice:    product.Price,
		ProductName:  product.Name,
		ProductImage: product.ImageURL,
	})
	if err != nil {
		return Line{}, err
	}

	log.Debug().Stringer("user_id", userID).Stringer("product_id", productID).Int("quantity", line.Quantity).Msg("Cart line added")
	return line, nil
}

func (s *service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.store.SetQuantity(ctx, userID, productID, quantity)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return s.store.Remove(ctx, userID, productID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.store.Clear(ctx, userID)
}
