package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/foodrescue/rescue-backend/internal/analytics/router"
	"github.com/foodrescue/rescue-backend/internal/analytics/types"
	"github.com/foodrescue/rescue-backend/internal/analytics/worker"
	"github.com/foodrescue/rescue-backend/internal/analytics/writer"
	"github.com/foodrescue/rescue-backend/pkg/bigquery"
	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/outbox/idempotency"
	"github.com/foodrescue/rescue-backend/pkg/pubsub"
	"github.com/foodrescue/rescue-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceKind, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeLogged(ctx, logg, "redis", redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeLogged(ctx, logg, "pubsub", pubsubClient)
	if err := pubsubClient.RequireSubscriptions(ctx, cfg.PubSub.AnalyticsSubscription); err != nil {
		return fmt.Errorf("analytics subscription: %w", err)
	}

	impactTable := bigquery.Table{Name: cfg.BigQuery.ImpactTable, Schema: types.ImpactFactSchema}
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, impactTable)
	if err != nil {
		return fmt.Errorf("bootstrap bigquery: %w", err)
	}
	defer closeLogged(ctx, logg, "bigquery", bqClient)

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	impactWriter, err := writer.New(bqClient, writer.Config{Table: impactTable.Name})
	if err != nil {
		return err
	}
	routes, err := router.New(impactWriter, logg)
	if err != nil {
		return err
	}
	service, err := worker.NewService(pubsubClient.Subscriber(cfg.PubSub.AnalyticsSubscription), routes, guard, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "serviceKind", serviceKind)
	logg.Info(ctx, "analytics worker ready")
	err = service.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		logg.Info(ctx, "analytics worker shutting down gracefully")
		return nil
	}
	return err
}

func closeLogged(ctx context.Context, logg *logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logg.Error(ctx, "failed to close "+name, err)
	}
}
