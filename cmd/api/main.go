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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kittykibble/kibble-backend/api/routes"
	"github.com/kittykibble/kibble-backend/internal/auth"
	"github.com/kittykibble/kibble-backend/internal/cart"
	"github.com/kittykibble/kibble-backend/internal/checkout"
	"github.com/kittykibble/kibble-backend/internal/compensation"
	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/products"
	"github.com/kittykibble/kibble-backend/internal/realtime"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/internal/users"
	"github.com/kittykibble/kibble-backend/internal/waybill"
	"github.com/kittykibble/kibble-backend/pkg/auth/session"
	"github.com/kittykibble/kibble-backend/pkg/config"
	"github.com/kittykibble/kibble-backend/pkg/db"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/metrics"
	"github.com/kittykibble/kibble-backend/pkg/migrate"
	"github.com/kittykibble/kibble-backend/pkg/novaposhta"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

const (
	shutdownTimeout = 15 * time.Second
	hubBuffer       = 32
)

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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		AdminConfig:    cfg.Admin,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(products.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	carrier, err := novaposhta.NewClient(cfg.Carrier.APIKey,
		novaposhta.WithBaseURL(cfg.Carrier.BaseURL),
		novaposhta.WithTimeout(cfg.Carrier.Timeout),
		novaposhta.WithCallObserver(checkoutMetrics.ObserveCarrierCall),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier client", err)
		os.Exit(1)
	}

	shippingService, err := shipping.NewService(carrier, redisClient, cfg.Carrier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	waybillService, err := waybill.NewService(carrier, cfg.Carrier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create waybill service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(redisClient, productService, cart.NewPubSubNotifier(redisClient), cfg.Redis.CartTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(
		ordersRepo,
		orders.NewListCache(redisClient, cfg.Redis.OrderCacheTTL, logg),
		shippingService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	compensationQueue, err := compensation.NewQueue(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create compensation queue", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:                 dbClient,
		Carts:              cartService,
		Shipping:           shippingService,
		Waybills:           waybillService,
		Orders:             ordersRepo,
		OrderLists:         ordersService,
		Customers:          users.NewCustomerRepository(dbClient.DB()),
		Compensation:       compensationQueue,
		Store:              redisClient,
		Metrics:            checkoutMetrics,
		Logger:             logg,
		LockTTL:            cfg.Redis.CheckoutLockTTL,
		DraftTTL:           cfg.Redis.DraftTTL,
		PackagingAllowance: cfg.Carrier.PackagingAllowance(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	var (
		hub      *realtime.Hub
		streamer *realtime.Streamer
	)
	if cfg.FeatureFlags.Realtime {
		hub = realtime.NewHub(hubBuffer)
		streamer = realtime.NewStreamer(hub, logg, 0)

		relay, err := realtime.NewCartRelay(redisClient, hub, logg)
		if err != nil {
			logg.Error(ctx, "failed to create cart relay", err)
			os.Exit(1)
		}
		group.Go(func() error { return ignoreCanceled(relay.Run(groupCtx)) })

		if cfg.FeatureFlags.UseSQLite {
			logg.Warn(ctx, "order change notifications disabled in sqlite mode")
		} else {
			listener, err := realtime.NewOrdersListener(cfg.DB.DSN, hub, ordersService, logg)
			if err != nil {
				logg.Error(ctx, "failed to create orders listener", err)
				os.Exit(1)
			}
			group.Go(func() error { return ignoreCanceled(listener.Run(groupCtx)) })
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"realtime": streamer != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			sessionManager,
			authService,
			productService,
			shippingService,
			cartService,
			checkoutService,
			ordersService,
			streamer,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if hub != nil {
		// Open streams never finish on their own.
		server.RegisterOnShutdown(hub.Close)
	}

	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
