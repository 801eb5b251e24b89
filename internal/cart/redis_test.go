package cart_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

func newRedisStore(t *testing.T) cart.Store {
	t.Helper()

	url := os.Getenv("REDIS_URL_TEST")
	if url == "" {
		t.Skip("REDIS_URL_TEST is not set, skipping redis integration test")
	}

	client, err := cart.Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return cart.NewRedisStore(client, time.Minute)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV4())
	productID := uuid.Must(uuid.NewV4())
	t.Cleanup(func() { _ = store.Clear(ctx, userID) })

	line := cart.Line{
		ProductID:   productID,
		Quantity:    2,
		UnitPrice:   money.MustParse("10.00"),
		ProductName: "Mug",
	}

	added, err := store.Add(ctx, userID, line)
	require.NoError(t, err)
	assert.Equal(t, 2, added.Quantity)

	merged, err := store.Add(ctx, userID, cart.Line{ProductID: productID, Quantity: 3, UnitPrice: money.MustParse("10.00"), ProductName: "Mug"})
	require.NoError(t, err)
	assert.Equal(t, 5, merged.Quantity)

	lines, err := store.Lines(ctx, userID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, money.MustParse("10.00"), lines[0].UnitPrice)
	assert.Equal(t, "Mug", lines[0].ProductName)

	require.NoError(t, store.SetQuantity(ctx, userID, productID, 1))
	require.ErrorIs(t, store.SetQuantity(ctx, userID, uuid.Must(uuid.NewV4()), 1), cart.ErrLineNotFound)

	require.NoError(t, store.Remove(ctx, userID, productID))
	require.ErrorIs(t, store.Remove(ctx, userID, productID), cart.ErrLineNotFound)

	lines, err = store.Lines(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
