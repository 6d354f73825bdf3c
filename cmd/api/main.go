package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/medmarket/medmarket-backend/api/routes"
	"github.com/medmarket/medmarket-backend/internal/approvals"
	"github.com/medmarket/medmarket-backend/internal/auth"
	"github.com/medmarket/medmarket-backend/internal/carousels"
	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/internal/categories"
	"github.com/medmarket/medmarket-backend/internal/checkout"
	"github.com/medmarket/medmarket-backend/internal/eligibility"
	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/internal/products"
	"github.com/medmarket/medmarket-backend/internal/users"
	stripewebhook "github.com/medmarket/medmarket-backend/internal/webhooks/stripe"
	"github.com/medmarket/medmarket-backend/pkg/auth/session"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/metrics"
	"github.com/medmarket/medmarket-backend/pkg/migrate"
	"github.com/medmarket/medmarket-backend/pkg/redis"
	"github.com/medmarket/medmarket-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	if err := migrate.AutoUp(context.Background(), cfg, logg, dbClient); err != nil {
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: &cfg.Password,
	})
	exitOnErr(logg, "failed to create auth service", err)

	registerParams := auth.RegisterServiceParams{TxRunner: dbClient, PasswordConfig: cfg.Password}
	registerService, err := auth.NewRegisterService(registerParams)
	exitOnErr(logg, "failed to create register service", err)
	adminRegisterService, err := auth.NewAdminRegisterService(registerParams)
	exitOnErr(logg, "failed to create admin register service", err)

	approvalsService, err := approvals.NewService(usersRepo, dbClient, sessionManager, logg)
	exitOnErr(logg, "failed to create approvals service", err)

	productService, err := products.NewService(productsRepo, dbClient)
	exitOnErr(logg, "failed to create product service", err)
	categoryService, err := categories.NewService(categories.NewRepository(conn))
	exitOnErr(logg, "failed to create category service", err)
	carouselService, err := carousels.NewService(carousels.NewRepository(conn))
	exitOnErr(logg, "failed to create carousel service", err)

	cartService, err := cart.NewService(cartRepo, dbClient, productsRepo)
	exitOnErr(logg, "failed to create cart service", err)

	gate, err := eligibility.NewGate(eligibility.NewUserAccounts(usersRepo), cartRepo)
	exitOnErr(logg, "failed to create eligibility gate", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Gate:           gate,
		Carts:          cartService,
		Orders:         ordersRepo,
		TxRunner:       dbClient,
		PaymentIntents: stripeClient.PaymentIntents(),
		Config:         cfg.Checkout,
		Metrics:        checkoutMetrics,
		Logger:         logg,
	})
	exitOnErr(logg, "failed to create checkout service", err)

	ordersService, err := orders.NewService(ordersRepo)
	exitOnErr(logg, "failed to create orders service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders: ordersRepo,
		CartRepoFactory: func(tx *gorm.DB) stripewebhook.CartClearer {
			return cart.NewRepository(tx)
		},
		TransactionRunner: dbClient,
		Metrics:           checkoutMetrics,
		Logger:            logg,
	})
	exitOnErr(logg, "failed to create stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripewebhook.DefaultEventTTL, "stripe-webhook")
	exitOnErr(logg, "failed to create stripe webhook guard", err)

	handler := routes.NewRouter(routes.Dependencies{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		Sessions:           sessionManager,
		Metrics:            registry,
		HTTPMetrics:        metrics.NewHTTPMetrics(registry),
		Auth:               authService,
		Register:           registerService,
		AdminRegister:      adminRegisterService,
		Approvals:          approvalsService,
		Products:           productService,
		Categories:         categoryService,
		Carousels:          carouselService,
		Cart:               cartService,
		Checkout:           checkoutService,
		Orders:             ordersService,
		StripeClient:       stripeClient,
		StripeWebhook:      webhookService,
		StripeWebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
