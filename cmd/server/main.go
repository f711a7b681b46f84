// Package main is the entrypoint for the errtrack API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/errtrack/internal/api"
	"github.com/kiranshivaraju/errtrack/internal/api/handler"
	mw "github.com/kiranshivaraju/errtrack/internal/api/middleware"
	"github.com/kiranshivaraju/errtrack/internal/cache"
	"github.com/kiranshivaraju/errtrack/internal/classifier"
	"github.com/kiranshivaraju/errtrack/internal/config"
	"github.com/kiranshivaraju/errtrack/internal/metrics"
	"github.com/kiranshivaraju/errtrack/internal/report"
	"github.com/kiranshivaraju/errtrack/internal/scheduler"
	"github.com/kiranshivaraju/errtrack/internal/store"
	"github.com/kiranshivaraju/errtrack/internal/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(base))

	if err := run(base); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(base slog.Handler) error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "driver", cfg.Database.Driver, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Build the application graph
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(ctx, cfg, base, reg)
	if err != nil {
		return err
	}
	defer a.close()

	// Warn-level application logs flagged with track=true are now recorded.
	slog.SetDefault(a.logger)

	// 3. Start retention scheduler
	if err := a.scheduler.Start(ctx, cfg.Retention.Schedule); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// 4. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// app is the wired application. close releases store and cache connections.
type app struct {
	router    http.Handler
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the store and optional cache and wires handlers,
// tracking logger and scheduler. Metrics are registered on reg and served
// from it.
func newApp(ctx context.Context, cfg *config.Config, base slog.Handler, reg *prometheus.Registry) (*app, error) {
	a := &app{}
	plain := slog.New(base)

	st, closeStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, closeStore)
	plain.Info("store opened", "driver", cfg.Database.Driver)

	// Redis is optional; without it stats are not cached and rate limiting
	// is off. Interfaces stay nil rather than holding a nil *RedisCache.
	var (
		reportCache cache.Cache
		cachePinger handler.Pinger
	)
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		if err := rc.Ping(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		reportCache, cachePinger = rc, rc
		plain.Info("redis connected")
	} else {
		plain.Warn("REDIS_URL not set, stats caching and rate limiting disabled")
	}

	m, err := metrics.New(reg)
	if err != nil {
		a.close()
		return nil, err
	}

	classifiers := classifier.NewFactory(st, classifier.DefaultProfiles()...)
	plain.Info("classifiers registered", "entity_types", classifiers.EntityTypes())

	tracker := tracking.NewLogger(plain, nil, classifiers, m)
	a.logger = slog.New(tracking.NewHandler(base, tracker))

	svc := report.NewService(st, reportCache, cfg.Report.StatsCacheTTL, plain)
	a.scheduler = scheduler.New(svc, cfg.Retention.Days, m, plain)

	a.router = api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth.APIKeyHash),
		RateLimit: mw.NewRateLimit(reportCache, cfg.Auth.RateLimitPerMin),

		HealthHandler:  handler.NewHealthHandler(st, cachePinger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),

		ListErrors:     handler.NewListErrorsHandler(svc),
		GetError:       handler.NewGetErrorHandler(svc),
		ResolveError:   handler.NewResolveHandler(svc),
		IgnoreError:    handler.NewIgnoreHandler(svc),
		StatsHandler:   handler.NewStatsHandler(svc),
		SummaryHandler: handler.NewSummaryHandler(svc),
		TrackHandler:   handler.NewTrackHandler(classifiers, m),
		CleanupHandler: handler.NewCleanupHandler(svc, cfg.Retention.Days, m),
	})
	return a, nil
}
