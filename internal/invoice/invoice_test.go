package invoice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/invoice"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
	"github.com/vasiliy-maslov/nexoshop/internal/refnum"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockRepository) GetInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*invoice.Invoice, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.Invoice), args.Error(1)
}

func source() invoice.Source {
	return invoice.Source{
		OrderID:  uuid.Must(uuid.NewV4()),
		UserID:   uuid.Must(uuid.NewV4()),
		Subtotal: money.MustParse("20.00"),
		Tax:      money.MustParse("2.40"),
		Total:    money.MustParse("22.40"),
	}
}

func TestGenerator_Generate(t *testing.T) {
	repo := new(MockRepository)
	gen := invoice.NewGenerator(repo, refnum.MustNew(refnum.PrefixInvoice))

	repo.On("CreateInvoice", mock.Anything, mock.AnythingOfType("*invoice.Invoice")).Return(nil).Once()

	src := source()
	inv, err := gen.Generate(context.Background(), src)
	require.NoError(t, err)
	assert.Regexp(t, `^INV-\d+-[A-Z0-9]{5}$`, inv.InvoiceNumber)
	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.Equal(t, src.Total, inv.Total)
	assert.Equal(t, src.OrderID, inv.OrderID)
	repo.AssertExpectations(t)
}

func TestGenerator_Generate_RetriesThenExhausts(t *testing.T) {
	repo := new(MockRepository)
	gen := invoice.NewGenerator(repo, refnum.MustNew(refnum.PrefixInvoice))

	repo.On("CreateInvoice", mock.Anything, mock.Anything).Return(invoice.ErrDuplicateInvoiceNumber).Times(invoice.DefaultNumberAttempts)

	_, err := gen.Generate(context.Background(), source())
	require.ErrorIs(t, err, invoice.ErrInvoiceNumberExhausted)
	repo.AssertExpectations(t)
}

func TestGenerator_Generate_OtherErrorsAreNotRetried(t *testing.T) {
	repo := new(MockRepository)
	gen := invoice.NewGenerator(repo, refnum.MustNew(refnum.PrefixInvoice))

	dbErr := errors.New("connection lost")
	repo.On("CreateInvoice", mock.Anything, mock.Anything).Return(dbErr).Once()

	_, err := gen.Generate(context.Background(), source())
	require.ErrorIs(t, err, dbErr)
	repo.AssertNumberOfCalls(t, "CreateInvoice", 1)
}
