package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/nexoshop/internal/db"
)

const (
	MinPasswordLength = 8
	DefaultCountry    = "Ecuador"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidProfile     = errors.New("full name is required")
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the part of an account its owner may edit. The address fields prefill checkout.
type Profile struct {
	FullName   string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

func (p Profile) normalize() (Profile, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	p.City = strings.TrimSpace(p.City)
	p.PostalCode = strings.TrimSpace(p.PostalCode)
	p.Country = strings.TrimSpace(p.Country)
	if p.FullName == "" {
		return Profile{}, ErrInvalidProfile
	}
	if p.Country == "" {
		p.Country = DefaultCountry
	}
	return p, nil
}

// Principal converts a stored account into the identity carried by tokens.
// Admins also hold the customer role so they can use the storefront.
func (a Account) Principal() User {
	roles := []string{RoleCustomer}
	if a.Role == RoleAdmin {
		roles = append(roles, RoleAdmin)
	}
	return User{ID: a.ID, Email: a.Email, Roles: roles}
}

func validRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) (*Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*Account, error)
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(db db.DB) Repository {
	return &postgresRepository{db: db}
}

const accountColumns = `id, email, full_name, role, password_hash, phone, address, city, postal_code, country,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.Role, &a.PasswordHash,
		&a.Phone, &a.Address, &a.City, &a.PostalCode, &a.Country, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *postgresRepository) Create(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate account ID: %w", err)
		}
		a.ID = id
	}

	if a.Country == "" {
		a.Country = DefaultCountry
	}

	query := `
		INSERT INTO users (id, email, full_name, password_hash, role, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, a.ID, a.Email, a.FullName, a.PasswordHash, a.Role, a.Country).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert account: %w", err)
	}
	return nil
}

func (r *postgresRepository) getBy(ctx context.Context, column string, value any) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE ` + column + ` = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repository: failed to select account by %s: %w", column, err)
	}
	return a, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getBy(ctx, "email", email)
}

func (r *postgresRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *postgresRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*Account, error) {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRow(ctx, query, role, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repository: failed to update role for account %s: %w", id, err)
	}
	return a, nil
}

func (r *postgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*Account, error) {
	query := `
		UPDATE users
		SET full_name = $1, phone = $2, address = $3, city = $4, postal_code = $5, country = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRow(ctx, query, p.FullName, p.Phone, p.Address, p.City, p.PostalCode, p.Country, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("repository: failed to update profile for account %s: %w", id, err)
	}
	return a, nil
}
