package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "nexoshop"

type claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenProvider signs and verifies HS256 bearer tokens.
type TokenProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenProvider(secret string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (p *TokenProvider) Issue(u User) (string, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		Roles: u.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	})

	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("identity: failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *TokenProvider) Parse(raw string) (User, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.FromString(c.Subject)
	if err != nil {
		return User{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return User{ID: id, Email: c.Email, Roles: c.Roles}, nil
}
