package cart_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/catalog"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Lines(ctx context.Context, userID uuid.UUID) ([]cart.Line, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.Line), args.Error(1)
}

func (m *MockStore) Add(ctx context.Context, userID uuid.UUID, line cart.Line) (cart.Line, error) {
	args := m.Called(ctx, userID, line)
	return args.Get(0).(cart.Line), args.Error(1)
}

func (m *MockStore) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return m.Called(ctx, userID, productID, quantity).Error(0)
}

func (m *MockStore) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type MockProducts struct {
	mock.Mock
}

func (m *MockProducts) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func TestService_Add_SnapshotsProduct(t *testing.T) {
	store := new(MockStore)
	products := new(MockProducts)
	svc := cart.NewService(store, products)

	userID := uuid.Must(uuid.NewV4())
	product := &catalog.Product{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Mug",
		ImageURL: "https://cdn.example.com/mug.png",
		Price:    money.MustParse("10.00"),
		IsActive: true,
	}
	want := cart.Line{
		ProductID:    product.ID,
		Quantity:     2,
		UnitPrice:    product.Price,
		ProductName:  "Mug",
		ProductImage: "https://cdn.example.com/mug.png",
	}

	products.On("GetProduct", mock.Anything, product.ID).Return(product, nil).Once()
	merged := want
	merged.Quantity = 5
	store.On("Add", mock.Anything, userID, want).Return(merged, nil).Once()

	got, err := svc.Add(context.Background(), userID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	store.AssertExpectations(t)
	products.AssertExpectations(t)
}

func TestService_Add_Rejections(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	productID := uuid.Must(uuid.NewV4())

	t.Run("zero_quantity", func(t *testing.T) {
		store := new(MockStore)
		svc := cart.NewService(store, new(MockProducts))

		_, err := svc.Add(context.Background(), userID, productID, 0)
		require.ErrorIs(t, err, cart.ErrInvalidQuantity)
	})

	t.Run("inactive_product", func(t *testing.T) {
		store := new(MockStore)
		products := new(MockProducts)
		svc := cart.NewService(store, products)
		products.On("GetProduct", mock.Anything, productID).Return(&catalog.Product{ID: productID, IsActive: false}, nil).Once()

		_, err := svc.Add(context.Background(), userID, productID, 1)
		require.ErrorIs(t, err, cart.ErrProductUnavailable)
		store.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown_product", func(t *testing.T) {
		products := new(MockProducts)
		svc := cart.NewService(new(MockStore), products)
		products.On("GetProduct", mock.Anything, productID).Return(nil, catalog.ErrProductNotFound).Once()

		_, err := svc.Add(context.Background(), userID, productID, 1)
		require.ErrorIs(t, err, cart.ErrProductUnavailable)
	})
}

func TestService_UpdateQuantity_RejectsBelowOne(t *testing.T) {
	store := new(MockStore)
	svc := cart.NewService(store, new(MockProducts))

	err := svc.UpdateQuantity(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), 0)
	require.ErrorIs(t, err, cart.ErrInvalidQuantity)
	store.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
