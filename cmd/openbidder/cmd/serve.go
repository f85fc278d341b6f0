package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/api"
	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/db"
	"github.com/patrickwarner/openbidder/internal/engine"
	"github.com/patrickwarner/openbidder/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bidder HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		initLogger := observability.InitLoggerWithService
		if verbose {
			initLogger = func(name string) (*zap.Logger, error) {
				return observability.InitLoggerWithLevel(logLevel(), name)
			}
		}
		logger, err := initLogger(cfg.ServiceName)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() {
			if err := logger.Sync(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
			}
		}()

		if err := run(logger, cfg); err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	},
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	var (
		store *db.RedisStore
		sink  engine.Sink
	)
	if cfg.RedisEnabled {
		var err error
		store, err = db.InitRedis(ctx, cfg.RedisAddr, cfg.RunTTL)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer store.Close()
		sink = store
	}

	eng, err := engine.New(cfg, logger, metricsRegistry, sink)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	srvDeps := api.NewServer(logger, eng, store, metricsRegistry)
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(srvDeps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Bidder running",
		zap.String("addr", addr),
		zap.String("strategy", cfg.Strategy),
		zap.String("run_id", eng.RunID()),
		zap.Bool("mirror", store != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
