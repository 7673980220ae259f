package cli

import (
	"context"
	"time"

	"github.com/turtacn/aptrec/internal/application/recommend"
	"github.com/turtacn/aptrec/internal/bootstrap"
	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres"
	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/aptrec/internal/infrastructure/database/redis"
	"github.com/turtacn/aptrec/internal/infrastructure/listing"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/internal/infrastructure/snapshot"
)

// QueryService answers the read commands.
type QueryService interface {
	Recommend(ctx context.Context, in recommend.RecommendInput) (*recommend.RecommendOutput, error)
	Nearby(ctx context.Context, in recommend.NearbyInput) (*recommend.NearbyOutput, error)
	Properties(ctx context.Context) ([]string, error)
	Landmarks(ctx context.Context) ([]string, error)
	Options() recommend.Options
}

type Migrator interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationStatus, error)
	Force(version int) error
}

type ListingImporter interface {
	Import(ctx context.Context, listings []repositories.Listing) (int64, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// ImportLock serialises listing imports across hosts.
type ImportLock interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

type SnapshotAnnouncer interface {
	SnapshotPublished(ctx context.Context, ev kafka.SnapshotPublished) error
}

// Factories build the components behind each command. A nil Invalidator or
// Announcer result means the feature is disabled by configuration.
type Factories struct {
	Service     func(ctx context.Context, cc *CLIContext) (QueryService, error)
	Migrator    func(cc *CLIContext) Migrator
	Importer    func(ctx context.Context, cc *CLIContext) (ListingImporter, error)
	Invalidator func(cc *CLIContext) (CacheInvalidator, error)
	ImportLock  func(cc *CLIContext) (ImportLock, error)
	ObjectStore func(ctx context.Context, cc *CLIContext) (snapshot.ObjectPutter, error)
	Announcer   func(cc *CLIContext) (SnapshotAnnouncer, error)
}

func defaultFactories() Factories {
	return Factories{
		Service:     localService,
		Migrator:    func(cc *CLIContext) Migrator { return bootstrap.NewMigrator(cc.Config.Database.Postgres, cc.Logger) },
		Importer:    postgresImporter,
		Invalidator: listingCache,
		ImportLock:  importLock,
		ObjectStore: objectStore,
		Announcer:   snapshotAnnouncer,
	}
}

// localService loads the configured snapshot and listing source into an
// in-process service. Served events are not published from the CLI.
func localService(ctx context.Context, cc *CLIContext) (QueryService, error) {
	snaps, err := bootstrap.NewSnapshotSource(cc.Config, cc.Logger, cc.Cleanup)
	if err != nil {
		return nil, err
	}
	metrics := prometheus.NewNoopAppMetrics()
	listings, err := bootstrap.NewListings(ctx, cc.Config, cc.Logger, metrics, cc.Cleanup)
	if err != nil {
		return nil, err
	}

	opts := recommend.OptionsFromConfig(cc.Config.Recommender)
	opts.PublishEvents = false
	svc, err := recommend.NewService(opts, recommend.Deps{
		Holder:  snapshot.NewHolder(cc.Logger),
		Source:  snaps.Source,
		Lookup:  listings.Lookup,
		Metrics: metrics,
		Logger:  cc.Logger,
	})
	if err != nil {
		return nil, err
	}
	if _, err := svc.ReloadFrom(ctx, "cli", snaps.Source); err != nil {
		return nil, err
	}
	return svc, nil
}

func postgresImporter(ctx context.Context, cc *CLIContext) (ListingImporter, error) {
	pg, err := bootstrap.OpenPostgres(ctx, cc.Config.Database.Postgres, cc.Logger, cc.Cleanup)
	if err != nil {
		return nil, err
	}
	return pg.Listings, nil
}

// redisFor opens the configured Redis once per invocation.
func redisFor(cc *CLIContext) (*redis.Client, redis.Cache, error) {
	if cc.redis == nil {
		client, cache, err := bootstrap.OpenRedis(cc.Config.Cache.Redis, cc.Logger, cc.Cleanup)
		if err != nil {
			return nil, nil, err
		}
		cc.redis, cc.cache = client, cache
	}
	return cc.redis, cc.cache, nil
}

func listingCache(cc *CLIContext) (CacheInvalidator, error) {
	if !cc.Config.Listing.Cache {
		return nil, nil
	}
	_, cache, err := redisFor(cc)
	if err != nil {
		return nil, err
	}
	return listing.NewCachedLookup(cache, nil, cc.Config.Listing.CacheTTL, cc.Logger, nil), nil
}

// importLock is only taken when Redis is configured for the listing cache.
func importLock(cc *CLIContext) (ImportLock, error) {
	if !cc.Config.Listing.Cache {
		return nil, nil
	}
	client, _, err := redisFor(cc)
	if err != nil {
		return nil, err
	}
	return redis.NewMutex(client, "listings-import", cc.Logger,
		redis.WithLockTTL(time.Minute), redis.WithWatchdog(0)), nil
}

// objectStore creates the snapshot bucket on first publish.
func objectStore(ctx context.Context, cc *CLIContext) (snapshot.ObjectPutter, error) {
	store, client, err := bootstrap.NewObjectStore(cc.Config.Storage.MinIO, cc.Logger, cc.Cleanup)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func snapshotAnnouncer(cc *CLIContext) (SnapshotAnnouncer, error) {
	if !cc.Config.Messaging.Kafka.Enabled {
		return nil, nil
	}
	pub, err := bootstrap.NewEventPublisher(cc.Config.Messaging.Kafka, "aptrec-cli", cc.Logger, nil, cc.Cleanup)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

//Personal.AI order the ending
