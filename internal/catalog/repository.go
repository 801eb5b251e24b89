package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
)

type Repository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// ListByStock returns products ordered by stock ascending. A negative maxStock means no limit.
	ListByStock(ctx context.Context, maxStock int) ([]Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// Stats counts products, active products and products at or below lowStock.
	Stats(ctx context.Context, lowStock int) (InventoryStats, error)

	// DecrementStockIfAvailable subtracts qty in a single conditional update and returns the new stock.
	DecrementStockIfAvailable(ctx context.Context, id uuid.UUID, qty int) (int, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error)

	CreateCategory(ctx context.Context, c *Category) error
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, c *Category) error
	// DeleteCategory removes the category. Its products stay, uncategorized.
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(db db.DB) Repository {
	return &postgresRepository{db: db}
}

const productColumns = `id, category_id, name, description, image_url, price_cents, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.ImageURL,
		&p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate products: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to get product %s: %w", id, err)
	}
	return p, nil
}

func (r *postgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CategoryID.Valid {
		args = append(args, filter.CategoryID.UUID)
		conds = append(conds, "category_id = $"+strconv.Itoa(len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list products: %w", err)
	}
	return collectProducts(rows)
}

func (r *postgresRepository) ListByStock(ctx context.Context, maxStock int) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ($1 < 0 OR stock <= $1) ORDER BY stock ASC, name`

	rows, err := r.db.Query(ctx, query, maxStock)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list products by stock: %w", err)
	}
	return collectProducts(rows)
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}

	query := `
		INSERT INTO products (id, category_id, name, description, image_url, price_cents, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.CategoryID, p.Name, p.Description, p.ImageURL,
		p.Price, p.Stock, p.IsActive).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Msg("Product created")
	return nil
}

func (r *postgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET category_id = $2, name = $3, description = $4, image_url = $5, price_cents = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING stock, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.CategoryID, p.Name, p.Description, p.ImageURL,
		p.Price, p.IsActive).Scan(&p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	return nil
}

func (r *postgresRepository) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return ErrNegativeStock
	}

	tag, err := r.db.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`, id, stock)
	if err != nil {
		return fmt.Errorf("repository: failed to set stock for product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// decrementAttempts bounds how often a missed decrement is retried when the classifying read
// shows enough stock, i.e. a concurrent release landed between the two statements.
const decrementAttempts = 3

func (r *postgresRepository) DecrementStockIfAvailable(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`
	var available int
	for attempt := 1; attempt <= decrementAttempts; attempt++ {
		var newStock int
		err := r.db.QueryRow(ctx, query, id, qty).Scan(&newStock)
		if err == nil {
			return newStock, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("repository: failed to decrement stock for product %s: %w", id, err)
		}

		// The predicate did not match: either the product is missing or stock is short.
		// The read below only classifies the failure, it never feeds a write.
		err = r.db.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrProductNotFound
			}
			return 0, fmt.Errorf("repository: failed to read stock for product %s: %w", id, err)
		}
		if available < qty {
			return 0, &InsufficientStockError{ProductID: id, Requested: qty, Available: available}
		}
		log.Debug().Stringer("product_id", id).Int("attempt", attempt).Msg("Stock changed between decrement and read, retrying")
	}

	return 0, fmt.Errorf("%w: product %s", ErrStockContended, id)
}

func (r *postgresRepository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	var newStock int
	err := r.db.QueryRow(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1 RETURNING stock`,
		id, qty).Scan(&newStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("repository: failed to increment stock for product %s: %w", id, err)
	}
	return newStock, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate category ID: %w", err)
		}
		c.ID = id
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (id, name, description, image_url) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		c.ID, c.Name, c.Description, c.ImageURL).Scan(&c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "categories_name_key") {
			return ErrCategoryExists
		}
		return fmt.Errorf("repository: failed to insert category: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, image_url, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate categories: %w", err)
	}
	return categories, nil
}

func (r *postgresRepository) UpdateCategory(ctx context.Context, c *Category) error {
	err := r.db.QueryRow(ctx,
		`UPDATE categories SET name = $2, description = $3, image_url = $4 WHERE id = $1 RETURNING created_at`,
		c.ID, c.Name, c.Description, c.ImageURL).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCategoryNotFound
		}
		if db.IsUniqueViolation(err, "categories_name_key") {
			return ErrCategoryExists
		}
		return fmt.Errorf("repository: failed to update category %s: %w", c.ID, err)
	}
	return nil
}

func (r *postgresRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete category %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) Stats(ctx context.Context, lowStock int) (InventoryStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE stock <= $1)
		FROM products
	`
	var stats InventoryStats
	if err := r.db.QueryRow(ctx, query, lowStock).Scan(&stats.Products, &stats.ActiveProducts, &stats.LowStockProducts); err != nil {
		return InventoryStats{}, fmt.Errorf("repository: failed to compute inventory stats: %w", err)
	}
	return stats, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
