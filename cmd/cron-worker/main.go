package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/internal/cron"
	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/metrics"
	"github.com/medmarket/medmarket-backend/pkg/migrate"
	"github.com/medmarket/medmarket-backend/pkg/redis"
	"github.com/medmarket/medmarket-backend/pkg/stripe"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).
			Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).
			Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg := logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	if err := run(ctx, cfg, logg, *once); err != nil {
		logg.Error(ctx, "cron worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.AutoUp(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	jobs, err := buildJobs(ctx, cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("build jobs: %w", err)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(promRegistry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "jobs", len(jobs))

	if once {
		logg.Info(ctx, "running single cron cycle")
		return service.RunOnce(ctx)
	}

	if cfg.Cron.MetricsAddr != "" {
		stopMetrics := serveMetrics(ctx, logg, cfg.Cron.MetricsAddr, promRegistry)
		defer stopMetrics()
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildJobs wires the order expiry and cart retention jobs. Stripe is
// optional; without an API key expired orders keep their intents.
func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	ttlParams := cron.OrderTTLJobParams{
		Logger: logg,
		Orders: orders.NewRepository(dbClient.DB()),
		TTL:    cfg.Checkout.PendingOrderTTL,
	}
	if cfg.Stripe.APIKey == "" {
		logg.Warn(ctx, "stripe api key missing; expired orders will not cancel payment intents")
	} else {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		ttlParams.Intents = client.PaymentIntents()
	}

	orderTTL, err := cron.NewOrderTTLJob(ttlParams)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewCartRetentionJob(cron.CartRetentionJobParams{
		Logger:    logg,
		Carts:     cart.NewRepository(dbClient.DB()),
		Retention: cfg.Cron.CartRetention,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{orderTTL, retention}, nil
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string, gatherer prometheus.Gatherer) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logg.Info(logg.WithField(ctx, "addr", addr), "cron metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "cron metrics server stopped", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
