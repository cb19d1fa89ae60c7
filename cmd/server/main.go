// Package main is the entry point for the SatyaMark verification backend.
// It wires the websocket gateway, the dedup dispatcher, the queue routers and
// the worker callback endpoints, and handles graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/satyamark/backend/database/connect"
	"github.com/satyamark/backend/internal/config"
	"github.com/satyamark/backend/internal/dispatch"
	"github.com/satyamark/backend/internal/fingerprint"
	"github.com/satyamark/backend/internal/metrics"
	"github.com/satyamark/backend/internal/queue"
	"github.com/satyamark/backend/internal/server"
	"github.com/satyamark/backend/internal/session"
	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/events"
	"github.com/satyamark/backend/pkg/health"
	"github.com/satyamark/backend/pkg/logger"
	redispkg "github.com/satyamark/backend/pkg/redis"
)

func main() {
	log := logger.New(logger.Config{
		Environment: os.Getenv("APP_ENV"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		ServiceName: "satyamark-backend",
	})
	defer func() {
		if err := log.Sync(); err != nil {
			log.Warn("Failed to sync logger", zap.Error(err))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connect.Postgres(ctx, log, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	store := verdict.NewPGStore(db, log)
	bus := events.NewBus(log)

	limiter := session.NewRateLimiter(session.LimiterConfig{
		Limit:  cfg.RateLimit,
		Window: cfg.RateWindow,
	})
	registry := session.NewRegistry(limiter, log)
	bus.Subscribe(registry)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@hourly", limiter.Sweep); err != nil {
		log.Fatal("Failed to schedule limiter sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	dial := queue.RedisDialer(log)
	textRouter := queue.NewRouter(queue.RouterConfig{
		Name:              "text",
		PrimaryURL:        cfg.RedisTextPrimaryURL,
		OverflowURL:       cfg.RedisTextOverflowURL,
		MemoryThresholdMB: cfg.MemoryThresholdMB,
	}, dial, log)
	imageRouter := queue.NewRouter(queue.RouterConfig{
		Name:              "image",
		PrimaryURL:        cfg.RedisImagePrimaryURL,
		OverflowURL:       cfg.RedisImageOverflowURL,
		MemoryThresholdMB: cfg.MemoryThresholdMB,
	}, dial, log)
	textRouter.Start(ctx, cfg.DrainInterval)
	imageRouter.Start(ctx, cfg.DrainInterval)

	if cfg.TransferInterval > 0 && cfg.RedisTextOverflowURL != "" {
		transfer := queue.NewTransfer(cfg.RedisTextPrimaryURL, cfg.RedisTextOverflowURL,
			queue.StreamTextJobs, dial, log)
		transfer.Start(ctx, cfg.TransferInterval)
	}

	dispatcher := dispatch.New(dispatch.Config{
		ImageAnalysisMode: cfg.ImageAnalysisMode,
		TextCallbackURL:   cfg.TextCallbackURL,
		ImageCallbackURL:  cfg.ImageCallbackURL,
	}, store, fingerprint.NewImageFetcher(log), textRouter, imageRouter, bus, log)

	checker := health.NewChecker()
	checker.Register(health.NewDatabaseCheck("postgres", db))
	if healthRedis, err := redispkg.Dial(ctx, cfg.RedisTextPrimaryURL, log); err != nil {
		log.Warn("Primary broker unreachable at startup, skipping health check", zap.Error(err))
	} else {
		checker.Register(health.NewRedisCheck("redis-text-primary", healthRedis.Client))
		defer func() {
			if err := healthRedis.Close(); err != nil {
				log.Warn("Failed to close health Redis client", zap.Error(err))
			}
		}()
	}

	httpServer := server.New(":"+cfg.AppPort, server.Deps{
		Log:        log,
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      store,
		Bus:        bus,
		Health:     checker,
	})
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	metricsServer := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		log.Info("Starting metrics server", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Metrics server shutdown", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
