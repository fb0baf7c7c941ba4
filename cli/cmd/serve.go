package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bundlecost/bundlecost/internal/api"
	"github.com/bundlecost/bundlecost/internal/config"
	"github.com/bundlecost/bundlecost/internal/measure"
	"github.com/bundlecost/bundlecost/internal/observability"
	"github.com/bundlecost/bundlecost/internal/sizecache"
	"github.com/bundlecost/bundlecost/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bundlecost measurement daemon",
	Long: `Run the HTTP daemon that editors and CI query for bundle sizes.
The daemon keeps the size cache warm across requests, deduplicates
concurrent measurements, and clears the cache automatically when a
watched workspace's lockfiles change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug || debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting bundlecost")

	metrics := observability.NewMetrics()
	tracer, err := observability.NewTracer(cmd.Context(), cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize OpenTelemetry tracer, tracing will be disabled")
	}

	engine := sizecache.NewEngine(
		measure.NewEngine(measure.EsbuildBundler{}, cfg.Bundle.Concurrency),
		sizecache.WithTTLs(cfg.Cache.PositiveTTL, cfg.Cache.NegativeTTL),
		sizecache.WithMetrics(metrics),
	)

	var watcher *watch.Manager
	if cfg.Watcher.Enabled {
		watcher, err = watch.NewManager(cfg.Watcher.Debounce, func() {
			engine.ClearCache()
			metrics.CacheCleared()
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize lockfile watcher, automatic invalidation disabled")
			watcher = nil
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	server := api.NewServer(cfg, engine, metrics, tracer, watcher)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down daemon...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if tracer != nil {
		_ = tracer.Shutdown(ctx)
	}

	log.Info().Msg("Daemon exited")
	return nil
}
