package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Registration struct {
	Email    string
	Password string
	FullName string
}

// Service manages local accounts and exchanges credentials for bearer tokens.
type Service struct {
	repo   Repository
	tokens *TokenProvider
	cost   int
}

func NewService(repo Repository, tokens *TokenProvider) *Service {
	return &Service{repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *Service) Register(ctx context.Context, reg Registration) (*Account, error) {
	if len(reg.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	account := &Account{
		Email:        normalizeEmail(reg.Email),
		FullName:     strings.TrimSpace(reg.FullName),
		Role:         RoleCustomer,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("service: failed to save account: %w", err)
	}

	log.Info().Stringer("user_id", account.ID).Msg("Account registered")
	return account, nil
}

// Login returns a signed token for valid credentials. Unknown emails and wrong passwords
// are reported identically.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Account, error) {
	account, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("service: failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.Principal())
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("service: failed to get account %s: %w", id, err)
	}
	return account, nil
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role string) (*Account, error) {
	if !validRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	account, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("service: failed to set role: %w", err)
	}

	log.Info().Stringer("user_id", id).Str("role", role).Msg("Account role changed")
	return account, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*Account, error) {
	p, err := p.normalize()
	if err != nil {
		return nil, err
	}

	account, err := s.repo.UpdateProfile(ctx, id, p)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("service: failed to update profile: %w", err)
	}
	return account, nil
}
