package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integración con Redis omitida en modo -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisBalanceCache(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	c := cache.NewRedisBalanceCacheWithClient(client, "test:balance:", time.Minute)

	t.Run("sin entrada", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "t", "nada")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("versión menor no pisa la mayor", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "t", "p", decimal.RequireFromString("7.5"), 3))
		require.NoError(t, c.Set(ctx, "t", "p", decimal.RequireFromString("1"), 2))
		require.NoError(t, c.Set(ctx, "t", "p", decimal.RequireFromString("2"), 3))

		got, ok, err := c.Get(ctx, "t", "p")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.RequireFromString("7.5")))

		require.NoError(t, c.Set(ctx, "t", "p", decimal.RequireFromString("4.25"), 4))
		got, _, err = c.Get(ctx, "t", "p")
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString("4.25")))

		ttl, err := client.PTTL(ctx, "test:balance:t:p").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("invalidar", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "t", "q", decimal.NewFromInt(1), 1))
		require.NoError(t, c.Invalidate(ctx, "t", "q"))
		_, ok, err := c.Get(ctx, "t", "q")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("saldo corrupto es error", func(t *testing.T) {
		require.NoError(t, client.HSet(ctx, "test:balance:t:bad", "balance", "abc").Err())
		_, _, err := c.Get(ctx, "t", "bad")
		assert.Error(t, err)
	})
}
