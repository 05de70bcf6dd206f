package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kittykibble/kibble-backend/api/controllers"
	cartcontrollers "github.com/kittykibble/kibble-backend/api/controllers/cart"
	ordercontrollers "github.com/kittykibble/kibble-backend/api/controllers/orders"
	"github.com/kittykibble/kibble-backend/api/middleware"
	"github.com/kittykibble/kibble-backend/internal/auth"
	"github.com/kittykibble/kibble-backend/internal/cart"
	"github.com/kittykibble/kibble-backend/internal/checkout"
	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/products"
	"github.com/kittykibble/kibble-backend/internal/realtime"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/pkg/auth/session"
	"github.com/kittykibble/kibble-backend/pkg/config"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	"github.com/kittykibble/kibble-backend/pkg/logger"
)

// KeyValueStore backs rate limiting and idempotency. It is usually the
// Redis client.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	IdempotencyKey(scope, id string) string
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	store KeyValueStore,
	metricsHandler http.Handler,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	productService products.Service,
	shippingService shipping.Service,
	cartService cart.Service,
	checkoutService checkout.Service,
	ordersService orders.Service,
	streamer *realtime.Streamer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins...),
	)

	var (
		rateStore        middleware.RateLimiter
		idempotencyStore interface {
			Get(context.Context, string) (string, error)
			SetNX(context.Context, string, any, time.Duration) (bool, error)
			IdempotencyKey(string, string) string
		}
		readiness = map[string]controllers.Pinger{"db": dbP}
	)
	if store != nil {
		rateStore = store
		idempotencyStore = store
		readiness["redis"] = store
	}

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
	guestPolicy := middleware.NewAuthRateLimitPolicy(
		"guest",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		0,
	)
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, rateStore, logg), idempotent).Post("/register", controllers.AuthRegister(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(guestPolicy, rateStore, logg)).Post("/guest", controllers.AuthGuest(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(productService, logg))
		r.Get("/{productId}", controllers.ProductDetail(productService, logg))
	})

	r.Route("/api/v1/shipping", func(r chi.Router) {
		r.Get("/areas", controllers.ShippingAreas(shippingService, logg))
		r.Get("/areas/{areaRef}/cities", controllers.ShippingCities(shippingService, logg))
		r.Get("/cities/{cityRef}/warehouses", controllers.ShippingWarehouses(shippingService, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Get("/api/v1/me", controllers.AuthMe(authService, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.With(idempotent).Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Patch("/items", cartcontrollers.CartUpdateQuantity(cartService, logg))
			r.Delete("/items", cartcontrollers.CartRemoveItem(cartService, logg))
			r.Delete("/products/{productId}", cartcontrollers.CartRemoveProduct(cartService, logg))
			r.Get("/stream", controllers.CartStream(streamer, logg))
		})

		r.Route("/api/v1/checkout", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.Checkout(checkoutService, logg))
			r.Post("/quote", controllers.CheckoutQuote(checkoutService, logg))
			r.Get("/draft", controllers.CheckoutDraftGet(checkoutService, logg))
			r.Put("/draft", controllers.CheckoutDraftSave(checkoutService, logg))
			r.Delete("/draft", controllers.CheckoutDraftDelete(checkoutService, logg))
			r.Get("/prefill", controllers.CheckoutPrefill(checkoutService, logg))
		})

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/stream", controllers.OrdersStream(streamer, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Get("/{orderId}/tracking", ordercontrollers.Tracking(ordersService, logg))
		})
	})

	r.Route("/api/admin/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Get("/", ordercontrollers.AdminList(ordersService, logg))
		r.Get("/stream", controllers.AdminOrdersStream(streamer, logg))
		r.Get("/{orderId}", ordercontrollers.AdminDetail(ordersService, logg))
		r.With(idempotent).Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(ordersService, logg))
		r.Delete("/{orderId}", ordercontrollers.AdminDelete(ordersService, logg))
		r.Get("/{orderId}/tracking", ordercontrollers.AdminTracking(ordersService, logg))
	})

	return r
}
