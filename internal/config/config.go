// Package config defines all configuration structures for aptrec.
// No I/O or parsing logic lives here; only plain data types and validation.
package config

import (
	"fmt"
	"math"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// HTTPConfig holds HTTP server tunables.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// AdminToken guards the operator endpoints; empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Port              int           `mapstructure:"port"`
	MaxRecvMsgSize    int           `mapstructure:"max_recv_msg_size"`
	KeepaliveTime     time.Duration `mapstructure:"keepalive_time"`
	KeepaliveTimeout  time.Duration `mapstructure:"keepalive_timeout"`
	MaxConnectionIdle time.Duration `mapstructure:"max_connection_idle"`
	EnableReflection  bool          `mapstructure:"enable_reflection"`
}

// ServerConfig groups the network listeners.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// RecommenderConfig holds query defaults and limits.
type RecommenderConfig struct {
	FacilitiesWeight float64 `mapstructure:"facilities_weight"`
	PriceWeight      float64 `mapstructure:"price_weight"`
	LocationWeight   float64 `mapstructure:"location_weight"`
	DefaultTopN      int     `mapstructure:"default_top_n"`
	MaxTopN          int     `mapstructure:"max_top_n"`
	DefaultRadiusKM  float64 `mapstructure:"default_radius_km"`
	MaxRadiusKM      float64 `mapstructure:"max_radius_km"`
	PublishEvents    bool    `mapstructure:"publish_events"`
}

// SnapshotConfig selects where similarity snapshots are read from.
type SnapshotConfig struct {
	Source   string        `mapstructure:"source"` // "file" | "minio"
	Dir      string        `mapstructure:"dir"`
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
	Prefix   string        `mapstructure:"prefix"`
}

// BreakerConfig tunes the circuit breaker in front of remote listing sources.
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// ListingConfig selects the listing lookup backing store.
type ListingConfig struct {
	Source   string        `mapstructure:"source"` // "file" | "postgres"
	File     string        `mapstructure:"file"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Cache    bool          `mapstructure:"cache"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxConns         int           `mapstructure:"max_conns"`
	MinConns         int           `mapstructure:"min_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// DatabaseConfig groups relational stores.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// CacheConfig groups cache backends.
type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// StorageConfig groups object stores.
type StorageConfig struct {
	MinIO MinIOConfig `mapstructure:"minio"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	SnapshotTopic   string        `mapstructure:"snapshot_topic"`
	ServedTopic     string        `mapstructure:"served_topic"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	MaxRetries      int           `mapstructure:"max_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	CreateTopics    bool          `mapstructure:"create_topics"`
	// InstanceID names this replica's snapshot consumer group. Set it to a
	// stable identity (pod or host name) so restarts reuse the group; empty
	// falls back to the host name.
	InstanceID string `mapstructure:"instance_id"`
}

// MessagingConfig groups message brokers.
type MessagingConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// PrometheusConfig controls metrics exposure.
type PrometheusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// MonitoringConfig groups observability backends.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// RateLimitConfig configures the per-client token bucket on the HTTP API.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Each component reads its
// settings from the relevant sub-struct.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	Listing     ListingConfig     `mapstructure:"listing"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Messaging   MessagingConfig   `mapstructure:"messaging"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	if err := validatePort("server.http.port", c.Server.HTTP.Port); err != nil {
		return err
	}
	switch c.Server.HTTP.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.http.mode %q is invalid; expected debug|release|test", c.Server.HTTP.Mode)
	}
	if c.Server.GRPC.Enabled {
		if err := validatePort("server.grpc.port", c.Server.GRPC.Port); err != nil {
			return err
		}
		if c.Server.GRPC.Port == c.Server.HTTP.Port {
			return fmt.Errorf("config: server.grpc.port %d collides with server.http.port", c.Server.GRPC.Port)
		}
	}

	// Recommender
	r := c.Recommender
	weights := []struct {
		key string
		val float64
	}{
		{"facilities_weight", r.FacilitiesWeight},
		{"price_weight", r.PriceWeight},
		{"location_weight", r.LocationWeight},
	}
	for _, w := range weights {
		if math.IsNaN(w.val) || math.IsInf(w.val, 0) {
			return fmt.Errorf("config: recommender.%s must be finite", w.key)
		}
	}
	if r.DefaultTopN < 1 {
		return fmt.Errorf("config: recommender.default_top_n must be ≥ 1, got %d", r.DefaultTopN)
	}
	if r.MaxTopN < 0 {
		return fmt.Errorf("config: recommender.max_top_n must be ≥ 0 (0 disables the cap), got %d", r.MaxTopN)
	}
	if r.MaxTopN > 0 && r.MaxTopN < r.DefaultTopN {
		return fmt.Errorf("config: recommender.max_top_n %d is below default_top_n %d", r.MaxTopN, r.DefaultTopN)
	}
	if r.DefaultRadiusKM <= 0 || r.DefaultRadiusKM > r.MaxRadiusKM {
		return fmt.Errorf("config: recommender.default_radius_km %v must be in (0, max_radius_km=%v]", r.DefaultRadiusKM, r.MaxRadiusKM)
	}

	// Snapshot
	switch c.Snapshot.Source {
	case "file":
		if c.Snapshot.Dir == "" {
			return fmt.Errorf("config: snapshot.dir is required for the file source")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("config: storage.minio.endpoint and storage.minio.bucket are required for the minio source")
		}
	default:
		return fmt.Errorf("config: snapshot.source %q is invalid; expected file|minio", c.Snapshot.Source)
	}

	// Listing
	switch c.Listing.Source {
	case "file":
		if c.Listing.File == "" {
			return fmt.Errorf("config: listing.file is required for the file source")
		}
	case "postgres":
		pg := c.Database.Postgres
		if pg.Host == "" || pg.User == "" || pg.DBName == "" {
			return fmt.Errorf("config: database.postgres host, user and db_name are required for the postgres listing source")
		}
		if err := validatePort("database.postgres.port", pg.Port); err != nil {
			return err
		}
		if pg.MaxConns < 1 {
			return fmt.Errorf("config: database.postgres.max_conns must be ≥ 1, got %d", pg.MaxConns)
		}
	default:
		return fmt.Errorf("config: listing.source %q is invalid; expected file|postgres", c.Listing.Source)
	}
	if c.Listing.Breaker.FailureRatio <= 0 || c.Listing.Breaker.FailureRatio > 1 {
		return fmt.Errorf("config: listing.breaker.failure_ratio must be in (0, 1], got %v", c.Listing.Breaker.FailureRatio)
	}
	if c.Listing.Cache && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.redis.addr is required when listing.cache is enabled")
	}
	if c.Cache.Redis.DB < 0 {
		return fmt.Errorf("config: cache.redis.db must be ≥ 0, got %d", c.Cache.Redis.DB)
	}

	// Kafka
	if c.Messaging.Kafka.Enabled {
		k := c.Messaging.Kafka
		if len(k.Brokers) == 0 {
			return fmt.Errorf("config: messaging.kafka.brokers must contain at least one broker address")
		}
		if k.GroupID == "" {
			return fmt.Errorf("config: messaging.kafka.group_id is required")
		}
		if k.SnapshotTopic == "" || k.ServedTopic == "" {
			return fmt.Errorf("config: messaging.kafka.snapshot_topic and served_topic are required")
		}
	}

	// Rate limit
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("config: ratelimit requires requests_per_second > 0 and burst ≥ 1")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: %s %d is out of range [1, 65535]", key, port)
	}
	return nil
}

//Personal.AI order the ending
