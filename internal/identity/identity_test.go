package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
)

const testSecret = "test-secret-with-enough-entropy"

func TestTokenProvider_RoundTrip(t *testing.T) {
	tokens := identity.NewTokenProvider(testSecret, time.Hour)
	user := identity.User{ID: uuid.Must(uuid.NewV4()), Email: "ana@example.com", Roles: []string{identity.RoleCustomer}}

	raw, err := tokens.Issue(user)
	require.NoError(t, err)

	got, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestTokenProvider_Rejects(t *testing.T) {
	user := identity.User{ID: uuid.Must(uuid.NewV4()), Email: "ana@example.com"}
	tokens := identity.NewTokenProvider(testSecret, time.Hour)

	t.Run("expired", func(t *testing.T) {
		raw, err := identity.NewTokenProvider(testSecret, -time.Minute).Issue(user)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		require.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		raw, err := identity.NewTokenProvider("other-secret", time.Hour).Issue(user)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		require.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": user.ID.String(),
			"iss": "nexoshop",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tokens.Parse(raw)
		require.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not-a-token")
		require.ErrorIs(t, err, identity.ErrInvalidToken)
	})
}

func TestMiddleware(t *testing.T) {
	tokens := identity.NewTokenProvider(testSecret, time.Hour)
	customer := identity.User{ID: uuid.Must(uuid.NewV4()), Roles: []string{identity.RoleCustomer}}
	admin := identity.User{ID: uuid.Must(uuid.NewV4()), Roles: []string{identity.RoleCustomer, identity.RoleAdmin}}

	var seen identity.User
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := identity.Authenticate(tokens)(identity.RequireRole(identity.RoleAdmin)(final))

	bearer := func(u identity.User) string {
		raw, err := tokens.Issue(u)
		require.NoError(t, err)
		return "Bearer " + raw
	}

	testCases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer abc", wantStatus: http.StatusUnauthorized},
		{name: "customer forbidden", header: bearer(customer), wantStatus: http.StatusForbidden},
		{name: "admin allowed", header: bearer(admin), wantStatus: http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}

	assert.Equal(t, admin.ID, seen.ID)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, a *identity.Account) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]identity.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Account), args.Error(1)
}

func (m *MockRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*identity.Account, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockRepository) UpdateProfile(ctx context.Context, id uuid.UUID, p identity.Profile) (*identity.Account, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func TestService_RegisterAndLogin(t *testing.T) {
	repo := new(MockRepository)
	tokens := identity.NewTokenProvider(testSecret, time.Hour)
	svc := identity.NewService(repo, tokens)

	var stored *identity.Account
	repo.On("Create", mock.Anything, mock.AnythingOfType("*identity.Account")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*identity.Account)
			stored.ID = uuid.Must(uuid.NewV4())
		}).Return(nil).Once()

	account, err := svc.Register(context.Background(), identity.Registration{
		Email:    "  Ana@Example.com ",
		Password: "correct horse",
		FullName: "Ana Torres",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", account.Email)
	assert.Equal(t, identity.RoleCustomer, account.Role)
	assert.NotEqual(t, "correct horse", account.PasswordHash)

	repo.On("GetByEmail", mock.Anything, "ana@example.com").Return(stored, nil)

	raw, got, err := svc.Login(context.Background(), "ANA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)

	principal, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, principal.ID)
	assert.True(t, principal.HasRole(identity.RoleCustomer))
	assert.False(t, principal.HasRole(identity.RoleAdmin))

	_, _, err = svc.Login(context.Background(), "ana@example.com", "wrong password")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	repo.AssertExpectations(t)
}

func TestService_Register_Validation(t *testing.T) {
	repo := new(MockRepository)
	svc := identity.NewService(repo, identity.NewTokenProvider(testSecret, time.Hour))

	_, err := svc.Register(context.Background(), identity.Registration{Email: "a@b.c", Password: "short"})
	require.ErrorIs(t, err, identity.ErrWeakPassword)

	repo.On("Create", mock.Anything, mock.Anything).Return(identity.ErrEmailExists).Once()
	_, err = svc.Register(context.Background(), identity.Registration{Email: "a@b.c", Password: "long enough"})
	require.ErrorIs(t, err, identity.ErrEmailExists)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	repo := new(MockRepository)
	svc := identity.NewService(repo, identity.NewTokenProvider(testSecret, time.Hour))
	repo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, identity.ErrAccountNotFound).Once()

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever1")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestService_SetRole(t *testing.T) {
	repo := new(MockRepository)
	svc := identity.NewService(repo, identity.NewTokenProvider(testSecret, time.Hour))
	id := uuid.Must(uuid.NewV4())

	_, err := svc.SetRole(context.Background(), id, "root")
	require.ErrorIs(t, err, identity.ErrInvalidRole)

	repo.On("UpdateRole", mock.Anything, id, identity.RoleAdmin).Return(&identity.Account{ID: id, Role: identity.RoleAdmin}, nil).Once()
	account, err := svc.SetRole(context.Background(), id, identity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{identity.RoleCustomer, identity.RoleAdmin}, account.Principal().Roles)
}

func TestService_UpdateProfile(t *testing.T) {
	repo := new(MockRepository)
	svc := identity.NewService(repo, identity.NewTokenProvider(testSecret, time.Hour))
	id := uuid.Must(uuid.NewV4())

	_, err := svc.UpdateProfile(context.Background(), id, identity.Profile{FullName: "  "})
	require.ErrorIs(t, err, identity.ErrInvalidProfile)

	want := identity.Profile{FullName: "Ana Torres", Phone: "0991234567", Address: "Av. Amazonas 123", City: "Quito", Country: identity.DefaultCountry}
	repo.On("UpdateProfile", mock.Anything, id, want).Return(&identity.Account{ID: id, FullName: "Ana Torres", City: "Quito"}, nil).Once()

	account, err := svc.UpdateProfile(context.Background(), id, identity.Profile{
		FullName: " Ana Torres ",
		Phone:    "0991234567",
		Address:  "Av. Amazonas 123 ",
		City:     "Quito",
	})
	require.NoError(t, err)
	assert.Equal(t, "Quito", account.City)
	repo.AssertExpectations(t)
}
