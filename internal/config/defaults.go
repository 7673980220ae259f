package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPPort        = 8080
	DefaultHTTPMode        = "release"
	DefaultGRPCPort        = 9090
	DefaultShutdownTimeout = 15 * time.Second

	DefaultFacilitiesWeight = 0.5
	DefaultPriceWeight      = 0.8
	DefaultLocationWeight   = 1.0
	DefaultTopN             = 5
	DefaultMaxTopN          = 0 // uncapped
	DefaultRadiusKM         = 5.0
	DefaultMaxRadiusKM      = 50.0

	DefaultSnapshotSource = "file"
	DefaultSnapshotDir    = "./data"
	DefaultSnapshotPrefix = "snapshots/current/"

	DefaultListingSource = "file"
	DefaultListingFile   = "./data/apartments.csv"
	DefaultListingTTL    = 10 * time.Minute

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "aptrec"
	DefaultDBMaxConns = 10

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "aptrec:"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "aptrec-snapshots"

	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaGroupID       = "aptrec"
	DefaultKafkaSnapshotTopic = "aptrec.snapshot.published"
	DefaultKafkaServedTopic   = "aptrec.recommendation.served"

	DefaultMetricsNamespace = "aptrec"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns a Config populated with every platform default, including
// the ones ApplyDefaults cannot infer from zero values (weights, booleans).
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			GRPC: GRPCConfig{Enabled: true, EnableReflection: true},
		},
		Recommender: RecommenderConfig{
			FacilitiesWeight: DefaultFacilitiesWeight,
			PriceWeight:      DefaultPriceWeight,
			LocationWeight:   DefaultLocationWeight,
			PublishEvents:    true,
		},
		Listing: ListingConfig{Cache: false},
		Monitoring: MonitoringConfig{
			Prometheus: PrometheusConfig{Enabled: true},
		},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerSecond: 50, Burst: 100},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields already set by the caller are left unchanged. Weights and booleans are
// not touched because their zero values are meaningful; Default and the
// loader seed those.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	h := &cfg.Server.HTTP
	if h.Port == 0 {
		h.Port = DefaultHTTPPort
	}
	if h.Mode == "" {
		h.Mode = DefaultHTTPMode
	}
	if h.ReadTimeout == 0 {
		h.ReadTimeout = 10 * time.Second
	}
	if h.WriteTimeout == 0 {
		h.WriteTimeout = 10 * time.Second
	}
	if h.MaxBodySize == 0 {
		h.MaxBodySize = 1 << 20
	}
	if h.ShutdownTimeout == 0 {
		h.ShutdownTimeout = DefaultShutdownTimeout
	}
	g := &cfg.Server.GRPC
	if g.Port == 0 {
		g.Port = DefaultGRPCPort
	}
	if g.MaxRecvMsgSize == 0 {
		g.MaxRecvMsgSize = 4 << 20
	}
	if g.KeepaliveTime == 0 {
		g.KeepaliveTime = 2 * time.Minute
	}
	if g.KeepaliveTimeout == 0 {
		g.KeepaliveTimeout = 20 * time.Second
	}
	if g.MaxConnectionIdle == 0 {
		g.MaxConnectionIdle = 15 * time.Minute
	}

	// ── Recommender ───────────────────────────────────────────────────────────
	r := &cfg.Recommender
	if r.DefaultTopN == 0 {
		r.DefaultTopN = DefaultTopN
	}
	if r.DefaultRadiusKM == 0 {
		r.DefaultRadiusKM = DefaultRadiusKM
	}
	if r.MaxRadiusKM == 0 {
		r.MaxRadiusKM = DefaultMaxRadiusKM
	}

	// ── Snapshot ──────────────────────────────────────────────────────────────
	if cfg.Snapshot.Source == "" {
		cfg.Snapshot.Source = DefaultSnapshotSource
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = DefaultSnapshotDir
	}
	if cfg.Snapshot.Prefix == "" {
		cfg.Snapshot.Prefix = DefaultSnapshotPrefix
	}
	if cfg.Snapshot.Debounce == 0 {
		cfg.Snapshot.Debounce = 500 * time.Millisecond
	}

	// ── Listing ───────────────────────────────────────────────────────────────
	l := &cfg.Listing
	if l.Source == "" {
		l.Source = DefaultListingSource
	}
	if l.File == "" {
		l.File = DefaultListingFile
	}
	if l.CacheTTL == 0 {
		l.CacheTTL = DefaultListingTTL
	}
	if l.Breaker.MaxRequests == 0 {
		l.Breaker.MaxRequests = 3
	}
	if l.Breaker.Interval == 0 {
		l.Breaker.Interval = time.Minute
	}
	if l.Breaker.Timeout == 0 {
		l.Breaker.Timeout = 30 * time.Second
	}
	if l.Breaker.MinRequests == 0 {
		l.Breaker.MinRequests = 10
	}
	if l.Breaker.FailureRatio == 0 {
		l.Breaker.FailureRatio = 0.6
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pg := &cfg.Database.Postgres
	if pg.Host == "" {
		pg.Host = DefaultDBHost
	}
	if pg.Port == 0 {
		pg.Port = DefaultDBPort
	}
	if pg.DBName == "" {
		pg.DBName = DefaultDBName
	}
	if pg.MaxConns == 0 {
		pg.MaxConns = DefaultDBMaxConns
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	rd := &cfg.Cache.Redis
	if rd.Addr == "" {
		rd.Addr = DefaultRedisAddr
	}
	if rd.KeyPrefix == "" {
		rd.KeyPrefix = DefaultRedisKeyPrefix
	}
	// DB 0 is both the default and a valid explicit value.

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.Storage.MinIO.Endpoint == "" {
		cfg.Storage.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.Storage.MinIO.Bucket == "" {
		cfg.Storage.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	k := &cfg.Messaging.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.GroupID == "" {
		k.GroupID = DefaultKafkaGroupID
	}
	if k.SnapshotTopic == "" {
		k.SnapshotTopic = DefaultKafkaSnapshotTopic
	}
	if k.ServedTopic == "" {
		k.ServedTopic = DefaultKafkaServedTopic
	}
	if k.AutoOffsetReset == "" {
		k.AutoOffsetReset = "latest"
	}
	if k.MaxRetries == 0 {
		k.MaxRetries = 3
	}
	if k.BatchTimeout == 0 {
		k.BatchTimeout = 50 * time.Millisecond
	}

	// ── Monitoring ────────────────────────────────────────────────────────────
	if cfg.Monitoring.Prometheus.Namespace == "" {
		cfg.Monitoring.Prometheus.Namespace = DefaultMetricsNamespace
	}
	if cfg.Monitoring.Prometheus.Path == "" {
		cfg.Monitoring.Prometheus.Path = DefaultMetricsPath
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

//Personal.AI order the ending
