package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodrescue/rescue-backend/api/routes"
	"github.com/foodrescue/rescue-backend/internal/businesses"
	"github.com/foodrescue/rescue-backend/internal/favorites"
	"github.com/foodrescue/rescue-backend/internal/impact"
	"github.com/foodrescue/rescue-backend/internal/inventory"
	"github.com/foodrescue/rescue-backend/internal/notifications"
	"github.com/foodrescue/rescue-backend/internal/pickupwindow"
	"github.com/foodrescue/rescue-backend/internal/rescuebags"
	"github.com/foodrescue/rescue-backend/internal/reservations"
	"github.com/foodrescue/rescue-backend/internal/users"
	"github.com/foodrescue/rescue-backend/pkg/auth"
	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/foodrescue/rescue-backend/pkg/migrate"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/redis"
)

const (
	serviceKind       = "api"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceKind, err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeLogged(ctx, logg, "database", dbClient)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeLogged(ctx, logg, "redis", redisClient)

	svc, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		return err
	}

	addr := ":" + firstNonEmpty(os.Getenv("PORT"), cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":     addr,
		"instance": firstNonEmpty(os.Getenv("DYNO"), "local"),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			tokens,
			dbClient,
			redisClient,
			promhttp.Handler(),
			svc.bags,
			svc.reservations,
			svc.impact,
			svc.notifications,
			svc.favorites,
			svc.users,
		),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	logg.Info(ctx, "api server shut down gracefully")
	return nil
}

type services struct {
	bags          rescuebags.Service
	reservations  reservations.Service
	impact        impact.Accumulator
	notifications notifications.Service
	favorites     favorites.Service
	users         users.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*services, error) {
	m := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	bagRepo := rescuebags.NewRepository(dbClient.DB())
	businessRepo := businesses.NewRepository(dbClient.DB())

	bags, err := rescuebags.NewService(rescuebags.ServiceParams{
		Repo:   bagRepo,
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("rescue bag service: %w", err)
	}

	ledger, err := inventory.NewLedger(bagRepo, m)
	if err != nil {
		return nil, fmt.Errorf("inventory ledger: %w", err)
	}

	impactService, err := impact.NewService(impact.NewRepository(dbClient.DB()), m)
	if err != nil {
		return nil, fmt.Errorf("impact service: %w", err)
	}

	reservationService, err := reservations.NewService(reservations.ServiceParams{
		Repo:            reservations.NewRepository(dbClient.DB()),
		Bags:            bagRepo,
		Businesses:      businessRepo,
		Ledger:          ledger,
		Policy:          pickupwindow.NewPolicy(cfg.Reservations.WindowPadding),
		Impact:          impactService,
		Tx:              dbClient,
		Outbox:          outboxService,
		Metrics:         m,
		Logger:          logg,
		ExpiryBatchSize: cfg.Cron.ExpiryBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("reservation service: %w", err)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	favoriteService, err := favorites.NewService(favorites.ServiceParams{
		Repo:       favorites.NewRepository(dbClient.DB()),
		Businesses: businessRepo,
		Bags:       bagRepo,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("favorites service: %w", err)
	}

	userService, err := users.NewService(users.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}

	return &services{
		bags:          bags,
		reservations:  reservationService,
		impact:        impactService,
		notifications: notificationService,
		favorites:     favoriteService,
		users:         userService,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type closer interface {
	Close() error
}

func closeLogged(ctx context.Context, logg *logger.Logger, name string, c closer) {
	if err := c.Close(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
