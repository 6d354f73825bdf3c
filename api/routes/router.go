package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medmarket/medmarket-backend/api/controllers"
	webhookcontrollers "github.com/medmarket/medmarket-backend/api/controllers/webhooks"
	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/internal/approvals"
	"github.com/medmarket/medmarket-backend/internal/auth"
	"github.com/medmarket/medmarket-backend/internal/carousels"
	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/internal/categories"
	"github.com/medmarket/medmarket-backend/internal/checkout"
	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/internal/products"
	stripewebhook "github.com/medmarket/medmarket-backend/internal/webhooks/stripe"
	"github.com/medmarket/medmarket-backend/pkg/auth/session"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/metrics"
	"github.com/medmarket/medmarket-backend/pkg/redis"
	"github.com/medmarket/medmarket-backend/pkg/stripe"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Metrics  prometheus.Gatherer

	// HTTPMetrics may be nil; request latency is then not recorded.
	HTTPMetrics *metrics.HTTPMetrics

	Auth          auth.Service
	Register      auth.RegisterService
	AdminRegister auth.AdminRegisterService
	Approvals     approvals.Service
	Products      products.Service
	Categories    categories.Service
	Carousels     carousels.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service

	StripeClient       *stripe.Client
	StripeWebhook      *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	idempotent := middleware.Idempotency(responseStore(deps.Redis), middleware.DefaultIdempotencyTTL, logg)
	idempotentCheckout := middleware.Idempotency(responseStore(deps.Redis), middleware.CheckoutIdempotencyTTL, logg)
	limit := func(p middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		return middleware.AuthRateLimit(p, windowLimiter(deps.Redis), logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessChecks(deps)))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.StripeWebhookGuard, logg))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(limit(loginPolicy)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(limit(registerPolicy), idempotent).Post("/register", controllers.AuthRegister(deps.Register, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(deps.AdminRegister, deps.Auth, cfg, logg))
		}
		r.With(limit(loginPolicy)).Post("/login", controllers.AdminAuthLogin(deps.Auth, logg))
	})

	// Catalog and the eligibility probe serve anonymous visitors too.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg))
		r.Route("/api/v1/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogProducts(deps.Products, logg))
			r.Get("/products/{slug}", controllers.CatalogProductDetail(deps.Products, logg))
			r.Get("/categories", controllers.CatalogCategories(deps.Categories, logg))
			r.Get("/carousels", controllers.CatalogCarousels(deps.Carousels, logg))
		})
		r.Get("/api/v1/checkout/eligibility", controllers.CheckoutEligibility(deps.Checkout, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

		r.Get("/me", controllers.Me(deps.Auth, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.Cart, logg))
			r.Delete("/", controllers.CartClear(deps.Cart, logg))
			r.With(idempotent).Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Patch("/items/{productId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.With(idempotentCheckout).Post("/checkout", controllers.CheckoutExecute(deps.Checkout, logg))

		r.Get("/orders", controllers.OrderList(deps.Orders, logg))
		r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, deps.Sessions, logg),
			middleware.RequireRole(logg, enums.UserRoleAdmin),
		)

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(deps.Products, logg))
			r.Get("/{productId}", controllers.AdminGetProduct(deps.Products, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(deps.Products, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(deps.Products, logg))
			r.Put("/{productId}/discounts", controllers.AdminReplaceDiscounts(deps.Products, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CatalogCategories(deps.Categories, logg))
			r.Post("/", controllers.AdminCreateCategory(deps.Categories, logg))
			r.Patch("/{categoryId}", controllers.AdminUpdateCategory(deps.Categories, logg))
			r.Delete("/{categoryId}", controllers.AdminDeleteCategory(deps.Categories, logg))
		})

		r.Route("/carousels", func(r chi.Router) {
			r.Get("/", controllers.AdminListCarousels(deps.Carousels, logg))
			r.Post("/", controllers.AdminCreateCarousel(deps.Carousels, logg))
			r.Patch("/{carouselId}", controllers.AdminUpdateCarousel(deps.Carousels, logg))
			r.Delete("/{carouselId}", controllers.AdminDeleteCarousel(deps.Carousels, logg))
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", controllers.AdminApprovalList(deps.Approvals, logg))
			r.With(idempotent).Post("/{userId}/approve", controllers.AdminApprove(deps.Approvals, logg))
			r.With(idempotent).Post("/{userId}/reject", controllers.AdminReject(deps.Approvals, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(deps.Orders, logg))
			r.With(idempotent).Post("/{orderId}/status", controllers.AdminOrderUpdateStatus(deps.Orders, logg))
		})
	})

	return r
}

func readinessChecks(deps Dependencies) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["db"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}

// The middlewares skip their checks on a nil store, so a missing client must
// reach them as an untyped nil.
func windowLimiter(client *redis.Client) middleware.WindowLimiter {
	if client == nil {
		return nil
	}
	return client
}

func responseStore(client *redis.Client) middleware.ResponseStore {
	if client == nil {
		return nil
	}
	return client
}
