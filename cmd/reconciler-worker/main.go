package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chainpay-backend/internal/cache"
	"github.com/angelmondragon/chainpay-backend/internal/cron"
	"github.com/angelmondragon/chainpay-backend/internal/engine"
	"github.com/angelmondragon/chainpay-backend/internal/notify"
	"github.com/angelmondragon/chainpay-backend/internal/ops"
	"github.com/angelmondragon/chainpay-backend/internal/payments"
	"github.com/angelmondragon/chainpay-backend/internal/providers"
	"github.com/angelmondragon/chainpay-backend/internal/resolver"
	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/db"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
	"github.com/angelmondragon/chainpay-backend/pkg/metrics"
	"github.com/angelmondragon/chainpay-backend/pkg/migrate"
	"github.com/angelmondragon/chainpay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	registry, err := providers.NewRegistry(cfg.Chains, cfg.Engine.ProviderTimeout)
	if err != nil {
		logg.Error(context.Background(), "invalid provider topology", err)
		os.Exit(1)
	}

	chainResolver, err := resolver.New(registry, logg, reconcileMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create resolver", err)
		os.Exit(1)
	}
	chainResolver.UseRateGuard(redisClient, int64(cfg.Engine.ProviderRateLimit), cfg.Engine.ProviderRateWindow)

	snapshotCache, err := cache.New(cache.Params{
		Store:   redisClient,
		TTL:     cfg.Engine.CacheTTL,
		Logger:  logg,
		Metrics: reconcileMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot cache", err)
		os.Exit(1)
	}

	dispatcher, err := notify.New(notify.Params{
		Config:  cfg.Callback,
		Logger:  logg,
		Metrics: reconcileMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	repo := payments.NewRepository(dbClient.DB())
	reconciler, err := engine.New(engine.Params{
		Repo:        repo,
		Tx:          dbClient,
		Resolver:    chainResolver,
		Cache:       snapshotCache,
		Dispatcher:  dispatcher,
		Chains:      cfg.Chains,
		Logger:      logg,
		Metrics:     reconcileMetrics,
		Concurrency: cfg.Engine.BatchConcurrency,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create engine", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileJob(reconciler)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewExpiryJob(reconciler)
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("reconciler:"+cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, expiryJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Engine.TickInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	handle, err := engine.NewHandle(scheduler, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create engine handle", err)
		os.Exit(1)
	}

	opsServer, err := ops.New(ops.Params{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ops server", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconciler worker")

	if err := handle.Start(ctx); err != nil {
		logg.Error(ctx, "failed to start reconciliation loop", err)
		os.Exit(1)
	}

	go func() {
		if err := opsServer.Start(ctx); err != nil {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := handle.Stop(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "reconciliation loop did not stop cleanly", err)
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(shutdownCtx, "ops server did not stop cleanly", err)
	}

	logg.Info(ctx, "reconciler worker shut down gracefully")
}
