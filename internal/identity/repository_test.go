package identity_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/db/dbtest"
	"github.com/vasiliy-maslov/nexoshop/internal/identity"
)

func TestRepository_Accounts(t *testing.T) {
	pool := dbtest.Open(t)
	repo := identity.NewRepository(pool)
	ctx := context.Background()

	account := &identity.Account{
		Email:        "ana@example.com",
		FullName:     "Ana Torres",
		Role:         identity.RoleCustomer,
		PasswordHash: "$2a$10$hash",
	}
	require.NoError(t, repo.Create(ctx, account))
	require.NotEqual(t, uuid.Nil, account.ID)
	assert.False(t, account.CreatedAt.IsZero())

	duplicate := &identity.Account{Email: "ana@example.com", Role: identity.RoleCustomer, PasswordHash: "x"}
	require.ErrorIs(t, repo.Create(ctx, duplicate), identity.ErrEmailExists)

	got, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)

	updated, err := repo.UpdateRole(ctx, account.ID, identity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, updated.Role)

	_, err = repo.GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, identity.ErrAccountNotFound)

	_, err = repo.UpdateRole(ctx, uuid.Must(uuid.NewV4()), identity.RoleAdmin)
	require.ErrorIs(t, err, identity.ErrAccountNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, identity.DefaultCountry, all[0].Country)

	profiled, err := repo.UpdateProfile(ctx, account.ID, identity.Profile{FullName: "Ana T.", City: "Cuenca", Country: "Ecuador"})
	require.NoError(t, err)
	assert.Equal(t, "Ana T.", profiled.FullName)
	assert.Equal(t, "Cuenca", profiled.City)
}

func TestRepository_PaymentMethods(t *testing.T) {
	pool := dbtest.Open(t)
	accounts := identity.NewRepository(pool)
	wallet := identity.NewWallet(identity.NewPaymentMethodRepository(pool))
	ctx := context.Background()

	owner := &identity.Account{Email: "luis@example.com", Role: identity.RoleCustomer, PasswordHash: "x"}
	require.NoError(t, accounts.Create(ctx, owner))

	first, err := wallet.Add(ctx, owner.ID, identity.NewPaymentMethod{
		Type: identity.PaymentMethodCard, CardHolderName: "Luis", CardNumber: "4111 1111 1111 1234", CardBrand: "Visa",
	})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "1234", first.CardLastFour)

	second, err := wallet.Add(ctx, owner.ID, identity.NewPaymentMethod{Type: identity.PaymentMethodPayPal})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	require.NoError(t, wallet.SetDefault(ctx, owner.ID, second.ID))
	methods, err := wallet.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, second.ID, methods[0].ID)
	assert.True(t, methods[0].IsDefault)
	assert.False(t, methods[1].IsDefault)

	require.ErrorIs(t, wallet.SetDefault(ctx, uuid.Must(uuid.NewV4()), first.ID), identity.ErrPaymentMethodNotFound)

	require.NoError(t, wallet.Remove(ctx, owner.ID, second.ID))
	methods, err = wallet.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.True(t, methods[0].IsDefault, "remaining method is promoted to default")

	require.ErrorIs(t, wallet.Remove(ctx, owner.ID, second.ID), identity.ErrPaymentMethodNotFound)
}
