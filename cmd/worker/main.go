// Command worker consumes recommendation.served events and keeps per-property
// served counters in Redis and Prometheus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/aptrec/internal/application/served"
	"github.com/turtacn/aptrec/internal/bootstrap"
	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/aptrec/internal/interfaces/http"
	"github.com/turtacn/aptrec/internal/interfaces/http/handlers"
)

var version = "dev"

const defaultHealthPort = 8081

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: APTREC_* environment)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := bootstrap.NewLogger(cfg.Log, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *healthPort, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("worker stopped")
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, healthPort int, logger logging.Logger) error {
	kcfg := cfg.Messaging.Kafka
	if !kcfg.Enabled {
		return errors.New("messaging.kafka.enabled must be true for the worker")
	}

	cleanup := bootstrap.NewCleanup(logger)
	defer cleanup.Run()

	if err := bootstrap.EnsureTopics(kcfg, logger); err != nil {
		return err
	}

	collector, metrics, err := bootstrap.NewMetrics(cfg.Monitoring.Prometheus, logger)
	if err != nil {
		return err
	}
	client, cache, err := bootstrap.OpenRedis(cfg.Cache.Redis, logger, cleanup)
	if err != nil {
		return err
	}
	tally := served.NewTally(cache, metrics, logger)

	consumer, err := bootstrap.NewConsumer(kcfg, "worker", []string{kcfg.ServedTopic}, logger, metrics, cleanup)
	if err != nil {
		return err
	}
	consumer.Subscribe(kcfg.ServedTopic, tally.Handle)

	hcfg := cfg.Server.HTTP
	hcfg.Port = healthPort
	gin.SetMode(hcfg.Mode)
	rcfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, nil,
			func() interface{} {
				return map[string]int64{"consumed": consumer.Consumed(), "failed": consumer.Failed()}
			},
			handlers.CheckFunc{ComponentName: "redis", Fn: client.Ping},
		),
		Logger:  logger,
		Metrics: metrics,
	}
	if cfg.Monitoring.Prometheus.Enabled {
		rcfg.MetricsHandler = collector.Handler()
		rcfg.MetricsPath = cfg.Monitoring.Prometheus.Path
	}
	health := httpserver.NewServer(hcfg, httpserver.NewRouter(rcfg), logger)

	logger.Info("starting worker",
		logging.String("version", version),
		logging.String("topic", kcfg.ServedTopic),
		logging.Int("health_port", healthPort),
	)

	g, gctx := errgroup.WithContext(ctx)
	if err := consumer.Start(gctx); err != nil {
		return err
	}
	g.Go(health.Start)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), hcfg.ShutdownTimeout)
		defer cancel()
		return health.Stop(stopCtx)
	})
	return g.Wait()
}

//Personal.AI order the ending
