package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodrescue/rescue-backend/internal/relay"
	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/foodrescue/rescue-backend/pkg/migrate"
	"github.com/foodrescue/rescue-backend/pkg/outbox"
	"github.com/foodrescue/rescue-backend/pkg/outbox/registry"
	"github.com/foodrescue/rescue-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceKind, err)
		os.Exit(1)
	}
}

func run() error {
	requeue := flag.String("requeue", "", "event id of a dead-lettered outbox event to put back on the queue, then exit")
	flag.Parse()

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
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": serviceKind,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	deadLetters := outbox.NewDeadLetters(dbClient.DB())
	if *requeue != "" {
		return requeueEvent(ctx, logg, deadLetters, *requeue)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()
	if err := pubsubClient.RequireTopics(ctx, cfg.PubSub.ReservationsTopic, cfg.PubSub.AnalyticsTopic); err != nil {
		return fmt.Errorf("pubsub topics: %w", err)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("build event registry: %w", err)
	}

	outboxRelay, err := relay.New(relay.Params{
		Config:      cfg.Outbox,
		Logger:      logg,
		DB:          dbClient,
		Events:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: deadLetters,
		Registry:    eventRegistry,
		Topics:      pubsubClient,
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Checks: []relay.Check{
			{Name: "database", Ping: dbClient.Ping},
			{Name: "pubsub", Ping: pubsubClient.Ping},
		},
	})
	if err != nil {
		return fmt.Errorf("create outbox relay: %w", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	err = outboxRelay.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logg.Info(ctx, "outbox publisher shutting down gracefully")
		return nil
	}
	return err
}

func requeueEvent(ctx context.Context, logg *logger.Logger, deadLetters *outbox.DeadLetters, raw string) error {
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", raw, err)
	}
	if err := deadLetters.Requeue(ctx, eventID); err != nil {
		return fmt.Errorf("requeue %s: %w", eventID, err)
	}
	logg.Info(logg.WithField(ctx, "event_id", eventID.String()), "dead-lettered event requeued")
	return nil
}
