package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisIdempotencyStore_Lifecycle(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, time.Hour)

	// Act & Assert
	state, _, err := store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyNew, state)
	assert.True(t, mr.Exists(idempotencyKeyPrefix+"k1"))

	state, _, err = store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyInProgress, state)

	require.NoError(t, store.Complete(ctx, "k1", "fp1", "sale-1"))
	state, saleID, err := store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyCompleted, state)
	assert.Equal(t, "sale-1", saleID)
	assert.Equal(t, time.Hour, mr.TTL(idempotencyKeyPrefix+"k1"))
}

func TestRedisIdempotencyStore_ReleaseAndExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, time.Minute)

	_, _, err := store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k1"))

	state, _, err := store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyNew, state)

	mr.FastForward(2 * time.Minute)
	state, _, err = store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyNew, state)
}

func TestRedisIdempotencyStore_RejectsDifferentRequest(t *testing.T) {
	// Arrange
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, time.Hour)
	_, _, err := store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)

	// Act
	_, _, pendingErr := store.Reserve(ctx, "k1", "fp2")
	require.NoError(t, store.Complete(ctx, "k1", "fp1", "sale-1"))
	_, _, completedErr := store.Reserve(ctx, "k1", "fp2")

	// Assert
	assert.ErrorIs(t, pendingErr, ErrIdempotencyKeyReused)
	assert.ErrorIs(t, completedErr, ErrIdempotencyKeyReused)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: addr})

	assert.Error(t, err)
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	state, _, err := store.Reserve(ctx, "k1", "fp1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyNew, state)

	state, _, _ = store.Reserve(ctx, "k1", "fp1")
	assert.Equal(t, IdempotencyInProgress, state)

	require.NoError(t, store.Complete(ctx, "k1", "fp1", "sale-1"))
	state, saleID, _ := store.Reserve(ctx, "k1", "fp1")
	assert.Equal(t, IdempotencyCompleted, state)
	assert.Equal(t, "sale-1", saleID)

	_, _, err = store.Reserve(ctx, "k1", "fp2")
	assert.ErrorIs(t, err, ErrIdempotencyKeyReused)

	now = now.Add(2 * time.Minute)
	state, _, _ = store.Reserve(ctx, "k1", "fp1")
	assert.Equal(t, IdempotencyNew, state)

	require.NoError(t, store.Release(ctx, "k1"))
	state, _, _ = store.Reserve(ctx, "k1", "fp1")
	assert.Equal(t, IdempotencyNew, state)
}

func TestCreateSaleIdempotent_WithRedis(t *testing.T) {
	// Arrange
	ctx := context.Background()
	env := newTestEnv(t)
	_, client := newTestRedis(t)
	product := env.seedProduct(t, "Coffee", "10.00", 5)
	uc := NewSaleUseCase(env.products, env.customers, env.sales, nil,
		NewRedisIdempotencyStore(client, time.Hour), nil, 0)
	req := CreateSaleRequest{Items: []SaleLineRequest{{ProductID: product.ID, Quantity: 1}}}

	// Act
	first, _, err := uc.CreateSaleIdempotent(ctx, "abc", req)
	require.NoError(t, err)
	second, replayed, err := uc.CreateSaleIdempotent(ctx, "abc", req)

	// Assert
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 4, env.stockOf(t, product.ID))
}
