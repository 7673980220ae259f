// Package served keeps running counts of how often each property is
// recommended, fed by recommendation.served events.
package served

import (
	"context"
	"time"

	"github.com/turtacn/aptrec/internal/infrastructure/database/redis"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/pkg/errors"
)

// ============================================================================
// Keys
// ============================================================================

const (
	countPrefix = "served:"
	seenPrefix  = "served-seen:"
	totalKey    = "served-total"

	// DefaultSeenTTL bounds how long a processed event ID is remembered.
	DefaultSeenTTL = 24 * time.Hour
)

// CountKey is the cache key holding the served count for property.
func CountKey(property string) string { return countPrefix + property }

// Store is the subset of the Redis cache the tally needs.
type Store interface {
	IncrOnce(ctx context.Context, marker string, ttl time.Duration, keys ...string) (bool, error)
	Get(ctx context.Context, key string, dest interface{}) error
}

// ============================================================================
// Tally
// ============================================================================

type Tally struct {
	store   Store
	metrics *prometheus.AppMetrics
	logger  logging.Logger
	seenTTL time.Duration
}

type Option func(*Tally)

// WithSeenTTL overrides DefaultSeenTTL. Zero disables redelivery detection.
func WithSeenTTL(ttl time.Duration) Option { return func(t *Tally) { t.seenTTL = ttl } }

func NewTally(store Store, metrics *prometheus.AppMetrics, logger logging.Logger, opts ...Option) *Tally {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	t := &Tally{store: store, metrics: metrics, logger: logger.Named("served"), seenTTL: DefaultSeenTTL}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Handle is the Kafka handler for recommendation.served. Malformed payloads
// are logged and dropped; store failures are returned so the consumer
// retries them.
func (t *Tally) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		t.logger.Warn("dropping malformed served event", logging.Err(err), logging.Int64("offset", msg.Offset))
		return nil
	}
	var ev kafka.RecommendationServed
	if err := env.DecodePayload(&ev); err != nil {
		t.logger.Warn("dropping served event with bad payload", logging.Err(err), logging.String("event_id", env.EventID))
		return nil
	}
	return t.Record(ctx, ev)
}

// Record adds one to the count of every property in ev.Results and to the
// total. The counters and the event's seen marker change together, so an
// event ID already recorded within the seen TTL is skipped and a failed
// attempt leaves nothing behind to double count on retry.
func (t *Tally) Record(ctx context.Context, ev kafka.RecommendationServed) error {
	keys := make([]string, 0, len(ev.Results)+1)
	for _, r := range ev.Results {
		keys = append(keys, CountKey(r.Name))
	}
	keys = append(keys, totalKey)

	ttl := t.seenTTL
	if ev.ID == "" {
		ttl = 0
	}
	counted, err := t.store.IncrOnce(ctx, seenPrefix+ev.ID, ttl, keys...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to count served recommendation").WithDetail(ev.ID)
	}
	if !counted {
		t.logger.Debug("served event already counted", logging.String("event_id", ev.ID))
		return nil
	}

	for i, r := range ev.Results {
		t.metrics.RecordPropertyServed(r.Name, i == 0)
	}
	t.logger.Debug("served event counted",
		logging.String("event_id", ev.ID), logging.String("query", ev.Query), logging.Int("results", len(ev.Results)))
	return nil
}

// Count returns how often property has been served. Unknown properties
// count zero.
func (t *Tally) Count(ctx context.Context, property string) (int64, error) {
	return t.get(ctx, CountKey(property))
}

// Total returns the number of recommendations counted.
func (t *Tally) Total(ctx context.Context) (int64, error) {
	return t.get(ctx, totalKey)
}

func (t *Tally) get(ctx context.Context, key string) (int64, error) {
	var n int64
	err := t.store.Get(ctx, key, &n)
	if errors.Is(err, redis.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

//Personal.AI order the ending
