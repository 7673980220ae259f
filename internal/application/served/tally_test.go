package served

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/database/redis"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/internal/testutil"
)

func newTally(t *testing.T, opts ...Option) (*Tally, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Default().Cache.Redis
	cfg.Addr = mr.Addr()
	client, err := redis.NewClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := redis.NewRedisCache(client, logging.NewNopLogger())
	return NewTally(cache, prometheus.NewNoopAppMetrics(), logging.NewNopLogger(), opts...), mr
}

func servedEvent(id string, names ...string) kafka.RecommendationServed {
	ev := kafka.RecommendationServed{ID: id, Query: "A", Weights: similarity.DefaultWeights(), TopN: len(names)}
	for _, n := range names {
		ev.Results = append(ev.Results, kafka.ServedResult{Name: n, Score: 1})
	}
	return ev
}

func toMessage(t *testing.T, ev kafka.RecommendationServed) *kafka.Message {
	t.Helper()
	env, err := kafka.NewEventEnvelope("recommendation.served", "test", ev)
	require.NoError(t, err)
	pm, err := env.ToMessage("aptrec.recommendation.served", ev.Query)
	require.NoError(t, err)
	return &kafka.Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value}
}

func TestTally_Record(t *testing.T) {
	tally, mr := newTally(t)
	ctx := context.Background()

	require.NoError(t, tally.Record(ctx, servedEvent("e1", "B", "C")))
	require.NoError(t, tally.Record(ctx, servedEvent("e2", "B")))

	b, err := tally.Count(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), b)

	c, err := tally.Count(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c)

	d, err := tally.Count(ctx, "D")
	require.NoError(t, err)
	assert.Zero(t, d)

	total, err := tally.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	assert.True(t, mr.Exists(config.DefaultRedisKeyPrefix+CountKey("B")))
}

func TestTally_SkipsRedelivery(t *testing.T) {
	tally, _ := newTally(t)
	ctx := context.Background()

	ev := servedEvent("e1", "B")
	require.NoError(t, tally.Record(ctx, ev))
	require.NoError(t, tally.Record(ctx, ev))

	n, err := tally.Count(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTally_SeenDisabled(t *testing.T) {
	tally, _ := newTally(t, WithSeenTTL(0))
	ctx := context.Background()

	ev := servedEvent("e1", "B")
	require.NoError(t, tally.Record(ctx, ev))
	require.NoError(t, tally.Record(ctx, ev))

	n, err := tally.Count(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTally_Handle(t *testing.T) {
	tally, _ := newTally(t)
	ctx := context.Background()

	require.NoError(t, tally.Handle(ctx, toMessage(t, servedEvent("e1", "C", "D"))))
	n, err := tally.Count(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTally_HandleDropsMalformed(t *testing.T) {
	logger := testutil.NewMockLogger()
	mr := miniredis.RunT(t)
	cfg := config.Default().Cache.Redis
	cfg.Addr = mr.Addr()
	client, err := redis.NewClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()
	tally := NewTally(redis.NewRedisCache(client, nil), nil, logger)

	err = tally.Handle(context.Background(), &kafka.Message{Value: []byte("not json")})
	assert.NoError(t, err)
	assert.True(t, logger.HasMessage("warn", "dropping malformed served event"))

	err = tally.Handle(context.Background(), &kafka.Message{Value: []byte(`{"event_id":"x","payload":null}`)})
	assert.NoError(t, err)
	assert.True(t, logger.HasMessage("warn", "dropping served event with bad payload"))
}

func TestTally_StoreFailureIsRetried(t *testing.T) {
	tally, mr := newTally(t, WithSeenTTL(0))
	mr.SetError("READONLY")

	err := tally.Record(context.Background(), servedEvent("e1", "B"))
	assert.Error(t, err)
}

func TestTally_PartialFailureCountsOnceAfterRetry(t *testing.T) {
	tally, mr := newTally(t)
	ctx := context.Background()
	key := config.DefaultRedisKeyPrefix + CountKey("C")
	require.NoError(t, mr.Set(key, "corrupt"))

	ev := servedEvent("e1", "B", "C")
	assert.Error(t, tally.Record(ctx, ev))

	mr.Del(key)
	require.NoError(t, tally.Record(ctx, ev))
	require.NoError(t, tally.Record(ctx, ev))

	for _, name := range []string{"B", "C"} {
		n, err := tally.Count(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, name)
	}
	total, err := tally.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTally_ConcurrentRedeliveryCountsOnce(t *testing.T) {
	tally, _ := newTally(t)
	ctx := context.Background()
	ev := servedEvent("e1", "B")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tally.Record(ctx, ev))
		}()
	}
	wg.Wait()

	n, err := tally.Count(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
