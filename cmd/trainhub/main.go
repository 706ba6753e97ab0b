package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/trainhub/internal/auth"
	"github.com/gosuda/trainhub/internal/config"
	"github.com/gosuda/trainhub/internal/metrics"
	"github.com/gosuda/trainhub/internal/server"
	"github.com/gosuda/trainhub/internal/store/postgres"
	redisstore "github.com/gosuda/trainhub/internal/store/redis"
	"github.com/gosuda/trainhub/internal/tenancy"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("TRAINHUB_LOG_LEVEL"))
	if parseErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("TRAINHUB_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	for name, n := range map[string]int{
		"database max_conns":    cfg.Database.MaxConns,
		"tenant pool max_conns": cfg.Tenancy.PoolMaxConns,
	} {
		if n < 0 || n > math.MaxInt32 {
			return fmt.Errorf("%s %d out of int32 range", name, n)
		}
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	isoMetrics := metrics.NewIsolation(registry)

	// Platform (non-tenant) pool: tenant metadata, audit log, cross-tenant reads.
	platform, err := postgres.New(ctx, cfg.Database.PlatformDSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer platform.Close()

	if err := platform.Migrate(ctx); err != nil {
		return err
	}

	sinks := []tenancy.AuditSink{platform.Audit()}
	resolverOpts := []tenancy.ResolverOption{}

	// Redis is optional: it adds the shared strategy cache and live alerts.
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		sinks = append(sinks, rdb.AuditPublisher())
		resolverOpts = append(resolverOpts, tenancy.WithStrategyCache(rdb.StrategyCache(cfg.Redis.StrategyTTL)))
	} else {
		log.Warn().Msg("TRAINHUB_REDIS_ADDR empty; strategy cache and live audit alerts disabled")
	}

	auditor := tenancy.NewAuditor(sinks,
		tenancy.WithAuditQueueSize(cfg.Tenancy.AuditQueueSize),
		tenancy.WithAuditWriteTimeout(cfg.Tenancy.AuditWriteTimeout),
		tenancy.WithAuditMetrics(isoMetrics),
	)

	resolver := tenancy.NewResolver(platform.Tenants(), resolverOpts...)

	connector := postgres.NewConnector(int32(cfg.Tenancy.PoolMaxConns), cfg.Tenancy.PoolMaxConnIdle) //nolint:gosec // bounds checked above
	pools := tenancy.NewPoolCache(connector, resolver, cfg.Database.DSN(),
		tenancy.WithSweepInterval(cfg.Tenancy.SweepInterval),
		tenancy.WithConnectTimeout(cfg.Tenancy.ConnectTimeout),
		tenancy.WithPoolMetrics(isoMetrics),
	)
	go pools.Run(ctx)

	manager := tenancy.NewManager(resolver, pools, auditor,
		tenancy.WithManagerValidationTimeout(cfg.Tenancy.ValidationTimeout),
		tenancy.WithPlatformPool(platform.Handle()),
		tenancy.WithManagerMetrics(isoMetrics),
	)

	authSvc := auth.NewService(manager, cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Platform: platform,
		Manager:  manager,
		Auth:     authSvc,
		Gatherer: registry,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	// Close tenant pools and drain pending audit entries after the last
	// request has finished.
	if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
