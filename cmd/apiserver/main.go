// Command apiserver serves recommendations over HTTP and gRPC and keeps the
// serving snapshot current.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/aptrec/internal/bootstrap"
	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: APTREC_* environment)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.HTTP.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.Server.GRPC.Port = *grpcPort
	}

	logger, err := bootstrap.NewLogger(cfg.Log, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting aptrec API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("http_port", cfg.Server.HTTP.Port),
		logging.Bool("grpc_enabled", cfg.Server.GRPC.Enabled),
		logging.Int("grpc_port", cfg.Server.GRPC.Port),
	)

	if *configPath != "" {
		config.Watch(*configPath, func(next *config.Config) {
			if logging.SetLevel(logger, next.Log.Level) {
				logger.Info("log level reloaded", logging.String("level", next.Log.Level))
			}
		}, func(err error) {
			logger.Warn("ignoring invalid config change", logging.Err(err))
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newAPIServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("api server initialization failed", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("api server exited with error", logging.Err(err))
		srv.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
	srv.Close()
	logger.Info("api server stopped")
}

//Personal.AI order the ending
