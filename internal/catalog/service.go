package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	Inventory(ctx context.Context) ([]Product, error)
	LowStock(ctx context.Context) ([]Product, error)
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
	Stats(ctx context.Context) (InventoryStats, error)

	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, c *Category) (*Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validateProduct(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProductData)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProductData)
	case p.Stock < 0:
		return ErrNegativeStock
	}
	return nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to get product %s: %w", id, err)
	}
	return p, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}
	return p, nil
}

// UpdateProduct changes descriptive fields and price. Stock is managed through SetStock.
func (s *service) UpdateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrCategoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to update product %s: %w", p.ID, err)
	}

	log.Info().Stringer("product_id", p.ID).Msg("Product updated")
	return p, nil
}

func (s *service) Inventory(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListByStock(ctx, -1)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list inventory: %w", err)
	}
	return products, nil
}

func (s *service) LowStock(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListByStock(ctx, LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list low stock products: %w", err)
	}
	return products, nil
}

func (s *service) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return ErrNegativeStock
	}

	if err := s.repo.SetStock(ctx, id, stock); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("service: failed to set stock for product %s: %w", id, err)
	}

	log.Info().Stringer("product_id", id).Int("stock", stock).Msg("Stock updated")
	return nil
}

func validateCategory(c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalidProductData)
	}
	return nil
}

func (s *service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	if err := validateCategory(c); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryExists) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}
	return c, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) UpdateCategory(ctx context.Context, c *Category) (*Category, error) {
	if err := validateCategory(c); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryNotFound) || errors.Is(err, ErrCategoryExists) {
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to update category %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("service: failed to delete category %s: %w", id, err)
	}

	log.Info().Stringer("category_id", id).Msg("Category deleted")
	return nil
}

// DeleteProduct removes the product from the catalog. Placed orders keep their line snapshots.
func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("service: failed to delete product %s: %w", id, err)
	}

	log.Info().Stringer("product_id", id).Msg("Product deleted")
	return nil
}

func (s *service) Stats(ctx context.Context) (InventoryStats, error) {
	stats, err := s.repo.Stats(ctx, LowStockThreshold)
	if err != nil {
		return InventoryStats{}, fmt.Errorf("service: failed to compute inventory stats: %w", err)
	}
	return stats, nil
}
