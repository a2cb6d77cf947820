package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodrescue/rescue-backend/internal/businesses"
	"github.com/foodrescue/rescue-backend/internal/cron"
	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/internal/inventory"
	"github.com/foodrescue/rescue-backend/internal/pickupwindow"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/internal/reservations"
	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/foodrescue/rescue-backend/pkg/migrate"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Environment: cfg.App.Env,
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	reservationMetrics := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	bagRepo := rescuebags.NewRepository(dbClient.DB())

	bagService, err := rescuebags.NewService(rescuebags.ServiceParams{
		Repo:   bagRepo,
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rescue bag service", err)
		os.Exit(1)
	}

	reservationService, err := buildReservationService(cfg, logg, dbClient, bagRepo, outboxService, reservationMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	schedule, err := buildSchedule(cfg, logg, dbClient, outboxRepo, reservationService, bagService, metricsCollector)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Schedule: schedule,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"jobs":        schedule.Len(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildReservationService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	bagRepo rescuebags.Repository,
	outboxService *outbox.Service,
	m *metrics.ReservationMetrics,
) (reservations.Service, error) {
	ledger, err := inventory.NewLedger(bagRepo, m)
	if err != nil {
		return nil, err
	}
	impactService, err := impact.NewService(impact.NewRepository(dbClient.DB()), m)
	if err != nil {
		return nil, err
	}
	return reservations.NewService(reservations.ServiceParams{
		Repo:            reservations.NewRepository(dbClient.DB()),
		Bags:            bagRepo,
		Businesses:      businesses.NewRepository(dbClient.DB()),
		Ledger:          ledger,
		Policy:          pickupwindow.NewPolicy(cfg.Reservations.WindowPadding),
		Impact:          impactService,
		Tx:              dbClient,
		Outbox:          outboxService,
		Metrics:         m,
		Logger:          logg,
		ExpiryBatchSize: cfg.Cron.ExpiryBatchSize,
	})
}

// buildSchedule runs both expiry sweeps on every tick; retention only needs
// an hourly pass.
func buildSchedule(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	outboxRepo *outbox.Repository,
	reservationService reservations.Service,
	bagService rescuebags.Service,
	m *metrics.CronJobMetrics,
) (*cron.Schedule, error) {
	reservationJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:       logg,
		Reservations: reservationService,
		Metrics:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("reservation expiry job: %w", err)
	}
	bagJob, err := cron.NewBagExpiryJob(cron.BagExpiryJobParams{
		Logger:    logg,
		Bags:      bagService,
		Metrics:   m,
		BatchSize: cfg.Cron.ExpiryBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("rescue bag expiry job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		DB:        dbClient,
		Outbox:    outboxRepo,
		Metrics:   m,
		Retention: cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return cron.NewSchedule(reservationJob, bagJob).Every(retentionJob, cfg.Cron.RetentionEvery), nil
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey("cron-worker:" + env)
}
