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

func newLockClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "aptrec:"}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestMutex_LockUnlock(t *testing.T) {
	client, mr := newLockClient(t)
	ctx := context.Background()

	m := NewMutex(client, "listings-import", nil, WithLockTTL(time.Second))
	require.NoError(t, m.Lock(ctx))
	assert.True(t, mr.Exists("aptrec:lock:listings-import"))

	ttl, err := m.TTL(ctx)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, m.Unlock(ctx))
	assert.False(t, mr.Exists("aptrec:lock:listings-import"))
}

func TestMutex_ExclusiveBetweenOwners(t *testing.T) {
	client, _ := newLockClient(t)
	ctx := context.Background()

	first := NewMutex(client, "job", nil)
	second := NewMutex(client, "job", nil, WithLockRetry(time.Millisecond, 3))

	require.NoError(t, first.Lock(ctx))

	ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	err = second.Lock(ctx)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict))

	assert.ErrorIs(t, second.Unlock(ctx), ErrLockNotHeld)

	require.NoError(t, first.Unlock(ctx))
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutex_Extend(t *testing.T) {
	client, mr := newLockClient(t)
	ctx := context.Background()

	m := NewMutex(client, "extend", nil, WithLockTTL(time.Second))
	require.NoError(t, m.Lock(ctx))

	ok, err := m.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, mr.TTL("aptrec:lock:extend"), 30*time.Second)

	mr.FastForward(2 * time.Minute)
	ok, err = m.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMutex_WatchdogStopsOnUnlock(t *testing.T) {
	client, _ := newLockClient(t)
	ctx := context.Background()

	m := NewMutex(client, "watched", nil, WithLockTTL(time.Second), WithWatchdog(10*time.Millisecond))
	require.NoError(t, m.Lock(ctx))
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, m.Unlock(ctx))
	assert.Nil(t, m.watchdogCancel)
}

func TestMutex_LockHonoursContext(t *testing.T) {
	client, _ := newLockClient(t)
	holder := NewMutex(client, "ctx", nil)
	require.NoError(t, holder.Lock(context.Background()))

	waiter := NewMutex(client, "ctx", nil, WithLockRetry(50*time.Millisecond, 100))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, waiter.Lock(ctx), context.DeadlineExceeded)
}
