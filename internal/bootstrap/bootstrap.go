// Package bootstrap turns a loaded Config into the runtime components shared
// by the API server, the worker and the CLI.
package bootstrap

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres"
	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/aptrec/internal/infrastructure/database/redis"
	"github.com/turtacn/aptrec/internal/infrastructure/listing"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/internal/infrastructure/snapshot"
	"github.com/turtacn/aptrec/internal/infrastructure/storage/minio"
	"github.com/turtacn/aptrec/pkg/errors"
)

const (
	SourceFile     = "file"
	SourceMinIO    = "minio"
	SourcePostgres = "postgres"
)

// Check is a named dependency probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Cleanup collects closers and runs them in reverse registration order.
type Cleanup struct {
	mu     sync.Mutex
	names  []string
	fns    []func() error
	logger logging.Logger
}

func NewCleanup(logger logging.Logger) *Cleanup {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cleanup{logger: logger}
}

func (c *Cleanup) Add(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

// Run closes everything registered so far. It is safe to call twice.
func (c *Cleanup) Run() {
	c.mu.Lock()
	names, fns := c.names, c.fns
	c.names, c.fns = nil, nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			c.logger.Warn("close failed", logging.String("component", names[i]), logging.Err(err))
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging & metrics
// ─────────────────────────────────────────────────────────────────────────────

// NewLogger builds the process logger. A non-empty level overrides cfg.
func NewLogger(cfg config.LogConfig, level string) (logging.Logger, error) {
	if level != "" {
		cfg.Level = level
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            cfg.Level,
		Format:           cfg.Format,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	})
}

// NewMetrics builds the collector and metric set. A disabled collector
// records nothing.
func NewMetrics(cfg config.PrometheusConfig, logger logging.Logger) (prometheus.MetricsCollector, *prometheus.AppMetrics, error) {
	if !cfg.Enabled {
		c := prometheus.NewNoopCollector()
		return c, prometheus.NewAppMetrics(c), nil
	}
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, prometheus.NewAppMetrics(c), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Object storage & snapshot sources
// ─────────────────────────────────────────────────────────────────────────────

// NewObjectStore connects to the snapshot bucket.
func NewObjectStore(cfg config.MinIOConfig, logger logging.Logger, cleanup *Cleanup) (minio.ObjectStore, *minio.MinIOClient, error) {
	client, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup.Add("minio", client.Close)
	return minio.NewObjectStore(client, logger), client, nil
}

// Snapshots is the configured snapshot source plus, for object storage, the
// store it reads from.
type Snapshots struct {
	Source snapshot.Source
	Dir    string
	Store  minio.ObjectStore
	Client *minio.MinIOClient
}

// NewSnapshotSource builds the source selected by cfg.Snapshot.Source.
func NewSnapshotSource(cfg *config.Config, logger logging.Logger, cleanup *Cleanup) (*Snapshots, error) {
	switch strings.ToLower(cfg.Snapshot.Source) {
	case "", SourceFile:
		return &Snapshots{Source: snapshot.NewDirSource(cfg.Snapshot.Dir, logger), Dir: cfg.Snapshot.Dir}, nil
	case SourceMinIO:
		store, client, err := NewObjectStore(cfg.Storage.MinIO, logger, cleanup)
		if err != nil {
			return nil, err
		}
		return &Snapshots{
			Source: snapshot.NewObjectSource(store, cfg.Snapshot.Prefix, logger),
			Store:  store,
			Client: client,
		}, nil
	default:
		return nil, errors.InvalidParam("unknown snapshot source").WithDetail(cfg.Snapshot.Source)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Postgres
// ─────────────────────────────────────────────────────────────────────────────

// Postgres bundles the database/sql connection used for reads and the pgx
// pool used for COPY imports.
type Postgres struct {
	Conn     *postgres.Connection
	Pool     *pgxpool.Pool
	Listings *repositories.ListingRepository
}

func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger logging.Logger, cleanup *Cleanup) (*Postgres, error) {
	conn, err := postgres.NewConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	cleanup.Add("postgres", conn.Close)

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	cleanup.Add("pgxpool", func() error { pool.Close(); return nil })

	return &Postgres{Conn: conn, Pool: pool, Listings: repositories.NewListingRepository(conn, pool, logger)}, nil
}

// NewMigrator returns a migrator for the configured database.
func NewMigrator(cfg config.PostgresConfig, logger logging.Logger) *postgres.Migrator {
	return postgres.NewMigrator(postgres.BuildDSN(cfg), logger)
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis
// ─────────────────────────────────────────────────────────────────────────────

func OpenRedis(cfg config.RedisConfig, logger logging.Logger, cleanup *Cleanup) (*redis.Client, redis.Cache, error) {
	client, err := redis.NewClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup.Add("redis", client.Close)
	return client, redis.NewRedisCache(client, logger), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing lookup chain
// ─────────────────────────────────────────────────────────────────────────────

// Listings is the assembled lookup chain. Optional links are nil when the
// configuration does not use them.
type Listings struct {
	Lookup   similarity.ListingLookup
	CSV      *listing.CSVLookup
	Breaker  *listing.BreakerLookup
	Cached   *listing.CachedLookup
	Postgres *Postgres
	Redis    *redis.Client
	Checks   []Check
}

// NewListings builds source -> breaker -> instrumentation -> cache. The
// breaker only guards remote sources.
func NewListings(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics, cleanup *Cleanup) (*Listings, error) {
	out := &Listings{}
	source := strings.ToLower(cfg.Listing.Source)

	switch source {
	case "", SourceFile:
		source = SourceFile
		csv, err := listing.LoadCSV(cfg.Listing.File)
		if err != nil {
			return nil, err
		}
		logger.Info("listing file loaded", logging.String("path", cfg.Listing.File), logging.Int("records", csv.Len()))
		out.CSV = csv
		out.Lookup = listing.NewInstrumentedLookup(csv, source, metrics)

	case SourcePostgres:
		pg, err := OpenPostgres(ctx, cfg.Database.Postgres, logger, cleanup)
		if err != nil {
			return nil, err
		}
		out.Postgres = pg
		out.Checks = append(out.Checks, Check{Name: "postgres", Fn: pg.Conn.HealthCheck})

		b := cfg.Listing.Breaker
		out.Breaker = listing.NewBreakerLookup(pg.Listings, listing.BreakerConfig{
			Name:         "listing-postgres",
			MaxRequests:  b.MaxRequests,
			Interval:     b.Interval,
			Timeout:      b.Timeout,
			MinRequests:  b.MinRequests,
			FailureRatio: b.FailureRatio,
		}, logger, listing.GaugeListener(metrics.BreakerState))
		out.Lookup = listing.NewInstrumentedLookup(out.Breaker, source, metrics)

	default:
		return nil, errors.InvalidParam("unknown listing source").WithDetail(cfg.Listing.Source)
	}

	if cfg.Listing.Cache {
		client, cache, err := OpenRedis(cfg.Cache.Redis, logger, cleanup)
		if err != nil {
			return nil, err
		}
		out.Redis = client
		out.Checks = append(out.Checks, Check{Name: "redis", Fn: client.Ping})
		out.Cached = listing.NewCachedLookup(cache, out.Lookup, cfg.Listing.CacheTTL, logger, metrics)
		out.Lookup = out.Cached
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Kafka
// ─────────────────────────────────────────────────────────────────────────────

// NewEventPublisher builds a producer and wraps it in the domain event
// publisher.
func NewEventPublisher(cfg config.KafkaConfig, source string, logger logging.Logger, metrics *prometheus.AppMetrics, cleanup *Cleanup) (*kafka.EventPublisher, error) {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Brokers,
		MaxRetries:   cfg.MaxRetries,
		BatchTimeout: cfg.BatchTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	cleanup.Add("kafka-producer", producer.Close)
	return kafka.NewEventPublisher(producer, source, cfg.SnapshotTopic, cfg.ServedTopic, metrics), nil
}

// EnsureTopics creates the snapshot and served topics when cfg asks for it.
func EnsureTopics(cfg config.KafkaConfig, logger logging.Logger) error {
	if !cfg.Enabled || !cfg.CreateTopics {
		return nil
	}
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(kafka.DefaultTopics(cfg.SnapshotTopic, cfg.ServedTopic))
}

// NewConsumer builds a group consumer for topics.
func NewConsumer(cfg config.KafkaConfig, groupSuffix string, topics []string, logger logging.Logger, metrics *prometheus.AppMetrics, cleanup *Cleanup) (*kafka.Consumer, error) {
	group := cfg.GroupID
	if groupSuffix != "" {
		group += "-" + groupSuffix
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Brokers,
		GroupID:         group,
		Topics:          topics,
		AutoOffsetReset: cfg.AutoOffsetReset,
		Retry:           kafka.RetryConfig{MaxRetries: cfg.MaxRetries},
	}, logger, metrics)
	if err != nil {
		return nil, err
	}
	cleanup.Add("kafka-consumer", consumer.Close)
	return consumer, nil
}

// NewReloadConsumer builds the per-replica snapshot announcement consumer.
// Every replica owns its group so each one sees every announcement. The group
// always starts at the newest offset: the serving snapshot is loaded at
// startup, so older announcements carry nothing to apply.
func NewReloadConsumer(cfg config.KafkaConfig, logger logging.Logger, metrics *prometheus.AppMetrics, cleanup *Cleanup) (*kafka.Consumer, error) {
	cfg, suffix := reloadConsumerConfig(cfg, os.Hostname)
	return NewConsumer(cfg, suffix, []string{cfg.SnapshotTopic}, logger, metrics, cleanup)
}

func reloadConsumerConfig(cfg config.KafkaConfig, hostname func() (string, error)) (config.KafkaConfig, string) {
	cfg.AutoOffsetReset = "latest"
	id := cfg.InstanceID
	if id == "" {
		if host, err := hostname(); err == nil {
			id = host
		}
	}
	if id == "" {
		return cfg, "apiserver"
	}
	return cfg, "apiserver-" + id
}

//Personal.AI order the ending
