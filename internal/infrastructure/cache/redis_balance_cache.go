// Package cache caché de saldos compartida entre instancias del servicio.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
)

var _ stock.BalanceCache = (*RedisBalanceCache)(nil)

const defaultKeyPrefix = "stock:balance:"

// setIfNewer escribe saldo y versión solo si la versión guardada es menor.
// KEYS[1] clave; ARGV[1] saldo; ARGV[2] versión; ARGV[3] TTL en ms (0 = sin expiración).
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'version', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// RedisConfig conexión a Redis.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisBalanceCache guarda saldo + versión por (tenant, producto) en un hash.
type RedisBalanceCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBalanceCache conecta y verifica con PING.
func NewRedisBalanceCache(ctx context.Context, cfg RedisConfig) (*RedisBalanceCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a Redis: %w", err)
	}
	return NewRedisBalanceCacheWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisBalanceCacheWithClient usa un cliente existente.
func NewRedisBalanceCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisBalanceCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisBalanceCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisBalanceCache) key(tenantID, productID string) string {
	return c.keyPrefix + tenantID + ":" + productID
}

// Get saldo cacheado; ok=false si no hay entrada.
func (c *RedisBalanceCache) Get(ctx context.Context, tenantID, productID string) (decimal.Decimal, bool, error) {
	raw, err := c.client.HGet(ctx, c.key(tenantID, productID), "balance").Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("leer saldo en caché: %w", err)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("saldo en caché corrupto %q: %w", raw, err)
	}
	return d, true, nil
}

// Set guarda el saldo si version es mayor que la almacenada.
func (c *RedisBalanceCache) Set(ctx context.Context, tenantID, productID string, balance decimal.Decimal, version int64) error {
	err := setIfNewer.Run(ctx, c.client,
		[]string{c.key(tenantID, productID)},
		balance.String(), version, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("guardar saldo en caché: %w", err)
	}
	return nil
}

// Invalidate borra la entrada.
func (c *RedisBalanceCache) Invalidate(ctx context.Context, tenantID, productID string) error {
	if err := c.client.Del(ctx, c.key(tenantID, productID)).Err(); err != nil {
		return fmt.Errorf("invalidar saldo en caché: %w", err)
	}
	return nil
}

// Close cierra el cliente.
func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}
