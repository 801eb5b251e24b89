// Package identity issues and verifies bearer tokens and manages local accounts.
package identity

import (
	"context"
	"errors"
	"slices"

	"github.com/gofrs/uuid"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrForbidden       = errors.New("insufficient role")
)

// User is the authenticated principal attached to a request.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Roles []string  `json:"roles"`
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

type contextKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the current user, or false when the request is anonymous.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}
