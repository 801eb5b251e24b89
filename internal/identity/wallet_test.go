package identity_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
)

type MockPaymentMethods struct {
	mock.Mock
}

func (m *MockPaymentMethods) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]identity.SavedPaymentMethod, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.SavedPaymentMethod), args.Error(1)
}

func (m *MockPaymentMethods) CreatePaymentMethod(ctx context.Context, pm *identity.SavedPaymentMethod) error {
	return m.Called(ctx, pm).Error(0)
}

func (m *MockPaymentMethods) DeletePaymentMethod(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *MockPaymentMethods) SetDefaultPaymentMethod(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func TestWallet_Add(t *testing.T) {
	user := uuid.Must(uuid.NewV4())

	tests := []struct {
		name     string
		in       identity.NewPaymentMethod
		wantErr  error
		wantLast string
	}{
		{
			name:     "card keeps last four digits",
			in:       identity.NewPaymentMethod{Type: identity.PaymentMethodCard, CardHolderName: "Ana", CardNumber: "4111-1111-1111-9876", CardBrand: "Visa"},
			wantLast: "9876",
		},
		{
			name: "paypal needs no card data",
			in:   identity.NewPaymentMethod{Type: identity.PaymentMethodPayPal},
		},
		{
			name:    "card number too short",
			in:      identity.NewPaymentMethod{Type: identity.PaymentMethodCard, CardHolderName: "Ana", CardNumber: "12", CardBrand: "Visa"},
			wantErr: identity.ErrInvalidPaymentMethod,
		},
		{
			name:    "card number with letters",
			in:      identity.NewPaymentMethod{Type: identity.PaymentMethodCard, CardHolderName: "Ana", CardNumber: "41x1", CardBrand: "Visa"},
			wantErr: identity.ErrInvalidPaymentMethod,
		},
		{
			name:    "card without holder",
			in:      identity.NewPaymentMethod{Type: identity.PaymentMethodCard, CardNumber: "1234", CardBrand: "Visa"},
			wantErr: identity.ErrInvalidPaymentMethod,
		},
		{
			name:    "unknown type",
			in:      identity.NewPaymentMethod{Type: "crypto"},
			wantErr: identity.ErrInvalidPaymentMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPaymentMethods)
			wallet := identity.NewWallet(repo)

			if tt.wantErr != nil {
				_, err := wallet.Add(context.Background(), user, tt.in)
				require.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "CreatePaymentMethod", mock.Anything, mock.Anything)
				return
			}

			repo.On("CreatePaymentMethod", mock.Anything, mock.AnythingOfType("*identity.SavedPaymentMethod")).Return(nil).Once()
			m, err := wallet.Add(context.Background(), user, tt.in)
			require.NoError(t, err)
			assert.Equal(t, user, m.UserID)
			assert.Equal(t, tt.wantLast, m.CardLastFour)
			repo.AssertExpectations(t)
		})
	}
}

func TestWallet_RemoveAndSetDefault_NotFound(t *testing.T) {
	repo := new(MockPaymentMethods)
	wallet := identity.NewWallet(repo)
	user, id := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	repo.On("DeletePaymentMethod", mock.Anything, user, id).Return(identity.ErrPaymentMethodNotFound).Once()
	repo.On("SetDefaultPaymentMethod", mock.Anything, user, id).Return(identity.ErrPaymentMethodNotFound).Once()

	require.ErrorIs(t, wallet.Remove(context.Background(), user, id), identity.ErrPaymentMethodNotFound)
	require.ErrorIs(t, wallet.SetDefault(context.Background(), user, id), identity.ErrPaymentMethodNotFound)
	repo.AssertExpectations(t)
}
