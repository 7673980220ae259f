package main

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/aptrec/internal/application/recommend"
	"github.com/turtacn/aptrec/internal/bootstrap"
	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/snapshot"
	grpcserver "github.com/turtacn/aptrec/internal/interfaces/grpc"
	httpserver "github.com/turtacn/aptrec/internal/interfaces/http"
	"github.com/turtacn/aptrec/internal/interfaces/http/handlers"
	"github.com/turtacn/aptrec/internal/interfaces/http/middleware"
)

const (
	readinessInterval = 2 * time.Second
	limiterSweepEvery = time.Minute
	limiterIdleTTL    = 10 * time.Minute
)

// apiServer owns every long-running component of the process.
type apiServer struct {
	cfg     *config.Config
	logger  logging.Logger
	cleanup *bootstrap.Cleanup

	svc      *recommend.Service
	snaps    *bootstrap.Snapshots
	http     *httpserver.Server
	grpc     *grpcserver.Server
	limiter  *middleware.KeyedLimiter
	consumer *kafka.Consumer
	watcher  *snapshot.Watcher
}

// newAPIServer wires the service and its transports and installs the first
// snapshot. A snapshot that fails validation aborts startup.
func newAPIServer(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *apiServer, err error) {
	s := &apiServer{cfg: cfg, logger: logger, cleanup: bootstrap.NewCleanup(logger)}
	defer func() {
		if err != nil {
			s.cleanup.Run()
		}
	}()

	collector, metrics, err := bootstrap.NewMetrics(cfg.Monitoring.Prometheus, logger)
	if err != nil {
		return nil, err
	}

	s.snaps, err = bootstrap.NewSnapshotSource(cfg, logger, s.cleanup)
	if err != nil {
		return nil, err
	}
	listings, err := bootstrap.NewListings(ctx, cfg, logger, metrics, s.cleanup)
	if err != nil {
		return nil, err
	}

	deps := recommend.Deps{
		Holder:  snapshot.NewHolder(logger),
		Source:  s.snaps.Source,
		Lookup:  listings.Lookup,
		Metrics: metrics,
		Logger:  logger,
	}
	kcfg := cfg.Messaging.Kafka
	if err := bootstrap.EnsureTopics(kcfg, logger); err != nil {
		return nil, err
	}
	if kcfg.Enabled && cfg.Recommender.PublishEvents {
		pub, err := bootstrap.NewEventPublisher(kcfg, "aptrec-apiserver", logger, metrics, s.cleanup)
		if err != nil {
			return nil, err
		}
		deps.Publisher = pub
	}

	s.svc, err = recommend.NewService(recommend.OptionsFromConfig(cfg.Recommender), deps)
	if err != nil {
		return nil, err
	}
	s.cleanup.Add("recommend", func() error { s.svc.Close(); return nil })

	if _, err := s.svc.ReloadFrom(ctx, "startup", s.snaps.Source); err != nil {
		return nil, err
	}

	// HTTP
	checks := make([]handlers.HealthChecker, 0, len(listings.Checks))
	for _, c := range listings.Checks {
		checks = append(checks, handlers.CheckFunc{ComponentName: c.Name, Fn: c.Fn})
	}
	if mc := s.snaps.Client; mc != nil {
		checks = append(checks, handlers.CheckFunc{ComponentName: "minio", Fn: func(ctx context.Context) error {
			status, err := mc.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !status.Healthy {
				return errors.New(status.Error)
			}
			return nil
		}})
	}
	gin.SetMode(cfg.Server.HTTP.Mode)
	rcfg := httpserver.RouterConfig{
		RecommendHandler: handlers.NewRecommendHandler(s.svc),
		HealthHandler: handlers.NewHealthHandler(version, s.svc.Ready,
			func() interface{} { return s.svc.Stats() }, checks...),
		Logger:       logger,
		Metrics:      metrics,
		MaxBodyBytes: cfg.Server.HTTP.MaxBodySize,
		AdminToken:   cfg.Server.HTTP.AdminToken,
	}
	if cfg.Monitoring.Prometheus.Enabled {
		rcfg.MetricsHandler = collector.Handler()
		rcfg.MetricsPath = cfg.Monitoring.Prometheus.Path
	}
	if rl := cfg.RateLimit; rl.Enabled {
		s.limiter = middleware.NewKeyedLimiter(rl.RequestsPerSecond, rl.Burst, limiterIdleTTL)
		rcfg.RateLimiter = s.limiter
		rcfg.RateLimit = middleware.DefaultRateLimitConfig()
		rcfg.RateLimit.RequestsPerSecond = rl.RequestsPerSecond
		rcfg.RateLimit.Burst = rl.Burst
		if p := rcfg.MetricsPath; p != "" {
			rcfg.RateLimit.SkipPaths = append(rcfg.RateLimit.SkipPaths, p)
		}
	}
	if origins := cfg.Server.HTTP.CORSOrigins; len(origins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = origins
		rcfg.CORS = &cors
	}
	s.http = httpserver.NewServer(cfg.Server.HTTP, httpserver.NewRouter(rcfg), logger)

	// gRPC
	if cfg.Server.GRPC.Enabled {
		s.grpc = grpcserver.NewServer(cfg.Server.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(metrics),
			grpcserver.WithGracefulTimeout(cfg.Server.HTTP.ShutdownTimeout),
		)
		grpcserver.RegisterRecommenderServer(s.grpc, grpcserver.NewRecommenderServer(s.svc))
	}

	// Reload triggers
	if kcfg.Enabled {
		s.consumer, err = bootstrap.NewReloadConsumer(kcfg, logger, metrics, s.cleanup)
		if err != nil {
			return nil, err
		}
		s.consumer.Subscribe(kcfg.SnapshotTopic, s.svc.HandleSnapshotPublished)
	}
	if cfg.Snapshot.Watch && s.snaps.Dir != "" {
		s.watcher, err = snapshot.NewWatcher(s.snaps.Dir, cfg.Snapshot.Debounce, s.reloadFromWatch, logger)
		if err != nil {
			return nil, err
		}
		s.cleanup.Add("snapshot-watcher", s.watcher.Close)
	}
	return s, nil
}

func (s *apiServer) reloadFromWatch(ctx context.Context) {
	if _, err := s.svc.ReloadFrom(ctx, "watch", s.snaps.Source); err != nil {
		s.logger.Warn("snapshot reload after file change failed, keeping current snapshot", logging.Err(err))
	}
}

// Run serves until ctx is cancelled or a component fails, then shuts the
// transports down.
func (s *apiServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.http.Start)
	if s.grpc != nil {
		g.Go(s.grpc.Start)
		g.Go(func() error {
			s.grpc.TrackReadiness(gctx, s.svc.Ready, readinessInterval)
			return nil
		})
	}
	if s.consumer != nil {
		if err := s.consumer.Start(gctx); err != nil {
			return err
		}
	}
	if s.watcher != nil {
		g.Go(func() error {
			if err := s.watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if s.limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(limiterSweepEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := s.limiter.Sweep(); n > 0 {
						s.logger.Debug("rate limiter buckets evicted", logging.Int("count", n))
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down servers")
		stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.HTTP.ShutdownTimeout)
		defer cancel()
		var errs []error
		if err := s.http.Stop(stopCtx); err != nil {
			errs = append(errs, err)
		}
		if s.grpc != nil {
			if err := s.grpc.Stop(stopCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Close releases every opened dependency in reverse order.
func (s *apiServer) Close() { s.cleanup.Run() }

//Personal.AI order the ending
