package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kittykibble/kibble-backend/internal/compensation"
	"github.com/kittykibble/kibble-backend/internal/cron"
	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/internal/waybill"
	"github.com/kittykibble/kibble-backend/pkg/config"
	"github.com/kittykibble/kibble-backend/pkg/db"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/metrics"
	"github.com/kittykibble/kibble-backend/pkg/migrate"
	"github.com/kittykibble/kibble-backend/pkg/novaposhta"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobs := flag.String("job", "", "comma separated job names for -once (default: all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	carrier, err := novaposhta.NewClient(cfg.Carrier.APIKey,
		novaposhta.WithBaseURL(cfg.Carrier.BaseURL),
		novaposhta.WithTimeout(cfg.Carrier.Timeout),
		novaposhta.WithCallObserver(checkoutMetrics.ObserveCarrierCall),
	)
	requireResource(logg, "carrier client", err)

	waybillService, err := waybill.NewService(carrier, cfg.Carrier, logg)
	requireResource(logg, "waybill service", err)

	shippingService, err := shipping.NewService(carrier, redisClient, cfg.Carrier, logg)
	requireResource(logg, "shipping service", err)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(
		ordersRepo,
		orders.NewListCache(redisClient, cfg.Redis.OrderCacheTTL, logg),
		shippingService,
		logg,
	)
	requireResource(logg, "orders service", err)

	queue, err := compensation.NewQueue(redisClient)
	requireResource(logg, "compensation queue", err)

	compensationJob, err := cron.NewWaybillCompensationJob(cron.WaybillCompensationJobParams{
		Logger:   logg,
		Queue:    queue,
		Waybills: waybillService,
		Metrics:  checkoutMetrics,
		Config:   cfg.Compensation,
	})
	requireResource(logg, "waybill compensation job", err)

	trackingJob, err := cron.NewTrackingSyncJob(cron.TrackingSyncJobParams{
		Logger:   logg,
		Orders:   ordersRepo,
		Statuses: ordersService,
		Tracker:  shippingService,
	})
	requireResource(logg, "tracking sync job", err)

	lock, err := redis.NewLock(redisClient, redisClient.LockKey("cron:"+lockScope(cfg.App.Env)), 0)
	requireResource(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(compensationJob, trackingJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Compensation.Interval,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"once": *once,
	})

	if *once {
		logg.Info(ctx, "running cron jobs once")
		if err := service.RunOnce(ctx, splitJobs(*jobs)...); err != nil {
			logg.Error(ctx, "cron run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to create %s", resource), err)
	os.Exit(1)
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func splitJobs(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
