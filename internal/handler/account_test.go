package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
	"github.com/vasiliy-maslov/nexoshop/internal/order"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, reg identity.Registration) (*identity.Account, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (string, *identity.Account, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return "", nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*identity.Account), args.Error(2)
}

func (m *MockAccountService) Get(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccountService) List(ctx context.Context) ([]identity.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Account), args.Error(1)
}

func (m *MockAccountService) SetRole(ctx context.Context, id uuid.UUID, role string) (*identity.Account, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, id uuid.UUID, p identity.Profile) (*identity.Account, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Account), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) List(ctx context.Context, userID uuid.UUID) ([]identity.SavedPaymentMethod, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.SavedPaymentMethod), args.Error(1)
}

func (m *MockWallet) Add(ctx context.Context, userID uuid.UUID, n identity.NewPaymentMethod) (*identity.SavedPaymentMethod, error) {
	args := m.Called(ctx, userID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.SavedPaymentMethod), args.Error(1)
}

func (m *MockWallet) Remove(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *MockWallet) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func TestAccountHandler_UpdateProfile(t *testing.T) {
	user := &identity.User{ID: uuid.Must(uuid.NewV4()), Roles: []string{identity.RoleCustomer}}

	testCases := []struct {
		name       string
		body       string
		setup      func(svc *MockAccountService)
		wantStatus int
	}{
		{
			name: "success",
			body: `{"full_name":"Ana Torres","phone":"0991234567","address":"Av. Amazonas 100","city":"Quito","postal_code":"170150"}`,
			setup: func(svc *MockAccountService) {
				svc.On("UpdateProfile", mock.Anything, user.ID, identity.Profile{
					FullName:   "Ana Torres",
					Phone:      "0991234567",
					Address:    "Av. Amazonas 100",
					City:       "Quito",
					PostalCode: "170150",
				}).Return(&identity.Account{ID: user.ID, FullName: "Ana Torres", City: "Quito", Country: identity.DefaultCountry}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing name",
			body:       `{"city":"Quito"}`,
			setup:      func(*MockAccountService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "rejected by service",
			body: `{"full_name":"  x "}`,
			setup: func(svc *MockAccountService) {
				svc.On("UpdateProfile", mock.Anything, user.ID, mock.Anything).Return(nil, identity.ErrInvalidProfile).Once()
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockAccountService)
			tc.setup(svc)
			router := chi.NewRouter()
			NewAccountHandler(svc, new(MockWallet), new(MockOrderService)).RegisterRoutes(router)

			rr := serveAs(t, router, user, http.MethodPut, "/me", tc.body)
			assert.Equal(t, tc.wantStatus, rr.Code, rr.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func TestAccountHandler_PaymentMethods(t *testing.T) {
	user := &identity.User{ID: uuid.Must(uuid.NewV4()), Roles: []string{identity.RoleCustomer}}
	methodID := uuid.Must(uuid.NewV4())

	t.Run("add card", func(t *testing.T) {
		wallet := new(MockWallet)
		router := chi.NewRouter()
		NewAccountHandler(new(MockAccountService), wallet, new(MockOrderService)).RegisterRoutes(router)

		wallet.On("Add", mock.Anything, user.ID, identity.NewPaymentMethod{
			Type:           identity.PaymentMethodCard,
			CardHolderName: "Ana Torres",
			CardNumber:     "4111 1111 1111 1111",
			CardBrand:      "visa",
		}).Return(&identity.SavedPaymentMethod{ID: methodID, Type: identity.PaymentMethodCard, CardLastFour: "1111", IsDefault: true}, nil).Once()

		rr := serveAs(t, router, user, http.MethodPost, "/me/payment-methods",
			`{"type":"card","card_holder_name":"Ana Torres","card_number":"4111 1111 1111 1111","card_brand":"visa"}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.NotContains(t, rr.Body.String(), "4111 1111")

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "1111", body["card_last_four"])
		assert.Equal(t, true, body["is_default"])
		wallet.AssertExpectations(t)
	})

	t.Run("card without number", func(t *testing.T) {
		wallet := new(MockWallet)
		router := chi.NewRouter()
		NewAccountHandler(new(MockAccountService), wallet, new(MockOrderService)).RegisterRoutes(router)

		rr := serveAs(t, router, user, http.MethodPost, "/me/payment-methods", `{"type":"card","card_holder_name":"Ana","card_brand":"visa"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		wallet.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remove unknown", func(t *testing.T) {
		wallet := new(MockWallet)
		router := chi.NewRouter()
		NewAccountHandler(new(MockAccountService), wallet, new(MockOrderService)).RegisterRoutes(router)

		wallet.On("Remove", mock.Anything, user.ID, methodID).Return(identity.ErrPaymentMethodNotFound).Once()
		rr := serveAs(t, router, user, http.MethodDelete, "/me/payment-methods/"+methodID.String(), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		wallet.AssertExpectations(t)
	})

	t.Run("set default", func(t *testing.T) {
		wallet := new(MockWallet)
		router := chi.NewRouter()
		NewAccountHandler(new(MockAccountService), wallet, new(MockOrderService)).RegisterRoutes(router)

		wallet.On("SetDefault", mock.Anything, user.ID, methodID).Return(nil).Once()
		rr := serveAs(t, router, user, http.MethodPut, "/me/payment-methods/"+methodID.String()+"/default", "")
		assert.Equal(t, http.StatusNoContent, rr.Code)
		wallet.AssertExpectations(t)
	})
}

func TestAccountHandler_ListUsersIncludesOrderStats(t *testing.T) {
	admin := &identity.User{ID: uuid.Must(uuid.NewV4()), Roles: []string{identity.RoleAdmin}}
	buyer := identity.Account{ID: uuid.Must(uuid.NewV4()), Email: "buyer@example.com", FullName: "Buyer", Role: identity.RoleCustomer}
	browser := identity.Account{ID: uuid.Must(uuid.NewV4()), Email: "browser@example.com", FullName: "Browser", Role: identity.RoleCustomer}

	svc := new(MockAccountService)
	orders := new(MockOrderService)
	svc.On("List", mock.Anything).Return([]identity.Account{buyer, browser}, nil).Once()
	orders.On("CustomerStats", mock.Anything, []uuid.UUID{buyer.ID, browser.ID}).Return(map[uuid.UUID]order.CustomerStats{
		buyer.ID:   {Orders: 3, TotalSpent: money.MustParse("75.00")},
		browser.ID: {},
	}, nil).Once()

	router := chi.NewRouter()
	NewAccountHandler(svc, new(MockWallet), orders).RegisterAdminRoutes(router)

	rr := serveAs(t, router, admin, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "buyer@example.com", body[0]["email"])
	assert.EqualValues(t, 3, body[0]["orders_count"])
	assert.Equal(t, "75.00", body[0]["total_spent"])
	assert.EqualValues(t, 0, body[1]["orders_count"])
	assert.Equal(t, "0.00", body[1]["total_spent"])
	svc.AssertExpectations(t)
	orders.AssertExpectations(t)
}
