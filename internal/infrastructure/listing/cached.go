package listing

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/database/redis"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
)

// CacheKeyPrefix namespaces listing entries inside the shared cache.
const CacheKeyPrefix = "listing:"

// loadTimeout bounds a shared source fetch, which outlives any one caller.
const loadTimeout = 10 * time.Second

// CachedLookup is a read-through Redis cache in front of another lookup.
// Names the source does not know are cached as null markers so repeated
// misses do not reach the source. Cache failures degrade to the source.
type CachedLookup struct {
	cache   redis.Cache
	next    similarity.ListingLookup
	ttl     time.Duration
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	group   singleflight.Group
}

func NewCachedLookup(cache redis.Cache, next similarity.ListingLookup, ttl time.Duration, log logging.Logger, metrics *prometheus.AppMetrics) *CachedLookup {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	return &CachedLookup{cache: cache, next: next, ttl: ttl, logger: log.Named("listing_cache"), metrics: metrics}
}

func cacheKey(name string) string { return CacheKeyPrefix + name }

func (c *CachedLookup) Links(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}

	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = cacheKey(n)
	}

	raw, err := c.cache.MGet(ctx, keys)
	if err != nil {
		c.logger.Warn("listing cache read failed, using source", logging.Err(err))
		raw = nil
	}

	var misses []string
	for _, n := range names {
		b, ok := raw[cacheKey(n)]
		switch {
		case !ok:
			misses = append(misses, n)
			c.metrics.RecordCacheAccess("listing", false)
		case redis.IsNull(b):
			c.metrics.RecordCacheAccess("listing", true)
		default:
			var link string
			if err := c.cache.Unmarshal(b, &link); err != nil {
				misses = append(misses, n)
				c.metrics.RecordCacheAccess("listing", false)
				continue
			}
			out[n] = link
			c.metrics.RecordCacheAccess("listing", true)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := c.load(ctx, misses)
	if err != nil {
		return nil, err
	}
	for n, link := range loaded {
		out[n] = link
	}
	return out, nil
}

// load fetches misses from the source once per distinct miss set and
// back-fills the cache. The shared fetch is detached from the caller that
// started it; each caller stops waiting when its own ctx ends.
func (c *CachedLookup) load(ctx context.Context, misses []string) (map[string]string, error) {
	sorted := append([]string(nil), misses...)
	sort.Strings(sorted)

	ch := c.group.DoChan(strings.Join(sorted, "\x00"), func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		found, err := c.next.Links(lctx, misses)
		if err != nil {
			return nil, err
		}

		items := make(map[string]interface{}, len(found))
		var absent []string
		for _, n := range misses {
			if link, ok := found[n]; ok && link != "" {
				items[cacheKey(n)] = link
			} else {
				absent = append(absent, cacheKey(n))
			}
		}
		if err := c.cache.MSet(lctx, items, c.ttl); err != nil {
			c.logger.Warn("listing cache write failed", logging.Err(err))
		}
		if err := c.cache.SetNull(lctx, absent...); err != nil {
			c.logger.Warn("listing cache null write failed", logging.Err(err))
		}
		return found, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]string), nil
	}
}

// Invalidate drops every cached listing entry.
func (c *CachedLookup) Invalidate(ctx context.Context) (int64, error) {
	return c.cache.DeleteByPrefix(ctx, CacheKeyPrefix)
}

//Personal.AI order the ending
