package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/aptrec/pkg/errors"
)

func TestNewClient_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "aptrec:"}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.GetUnderlyingClient().Ping(context.Background()).Err())
	assert.Equal(t, "aptrec:", client.KeyPrefix())
	assert.NotNil(t, client.PoolStats())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: addr}, logging.NewNopLogger())
	assert.Nil(t, client)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestApplyDefaults(t *testing.T) {
	cfg := config.RedisConfig{}
	applyDefaults(&cfg)

	assert.Positive(t, cfg.PoolSize)
	assert.Equal(t, 2, cfg.MinIdleConns)
	assert.NotZero(t, cfg.DialTimeout)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
	assert.ErrorIs(t, client.Get(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.MGet(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Scan(ctx, 0, "*", 10).Err(), ErrClientClosed)
}

func TestCache_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "aptrec:"}, nil)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client, nil)

	require.NoError(t, cache.MSet(ctx, map[string]interface{}{"listing:B": "https://listings.example/b"}, 0))
	require.NoError(t, cache.SetNull(ctx, "listing:Z"))
	assert.True(t, mr.Exists("aptrec:listing:B"))

	raw, err := cache.MGet(ctx, []string{"listing:B", "listing:Z", "listing:C"})
	require.NoError(t, err)
	assert.Len(t, raw, 2)
	assert.True(t, IsNull(raw["listing:Z"]))

	var link string
	require.NoError(t, cache.Unmarshal(raw["listing:B"], &link))
	assert.Equal(t, "https://listings.example/b", link)

	counted, err := cache.IncrOnce(ctx, "served-seen:e1", time.Minute, "served:B")
	require.NoError(t, err)
	assert.True(t, counted)
	v, err := mr.Get("aptrec:served:B")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	deleted, err := cache.DeleteByPrefix(ctx, "listing:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.True(t, mr.Exists("aptrec:served:B"))
}
