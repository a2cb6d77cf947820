// Package relay moves committed outbox rows onto Pub/Sub. Each drain runs in
// one transaction holding row locks, so several relay processes can share the
// outbox table without publishing a row twice per attempt.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/db/models"
	"github.com/foodrescue/rescue-backend/pkg/enums"
	"github.com/foodrescue/rescue-backend/pkg/logger"
	"github.com/foodrescue/rescue-backend/pkg/metrics"
	"github.com/foodrescue/rescue-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	pollJitter            = 250 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Check is a named dependency check run once before the relay starts.
type Check struct {
	Name string
	Ping func(context.Context) error
}

type Params struct {
	Config      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Events      eventStore
	DeadLetters deadLetterStore
	Registry    resolver
	Topics      TopicSource
	Metrics     *metrics.OutboxMetrics
	Checks      []Check
}

type Relay struct {
	logg           *logger.Logger
	db             txRunner
	events         eventStore
	deadLetters    deadLetterStore
	registry       resolver
	publishers     *publisherPool
	metrics        *metrics.OutboxMetrics
	checks         []Check
	batchSize      int
	maxAttempts    int
	publishTimeout time.Duration
	pace           pacer
	now            func() time.Time
}

func New(params Params) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dead letter repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub topic source is required")
	}

	cfg := params.Config
	batch := positiveOr(cfg.BatchSize, defaultBatchSize)
	attempts := positiveOr(cfg.MaxAttempts, defaultMaxAttempts)
	poll := defaultPollInterval
	if cfg.PollIntervalMS > 0 {
		poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	return &Relay{
		logg:           params.Logger,
		db:             params.DB,
		events:         params.Events,
		deadLetters:    params.DeadLetters,
		registry:       params.Registry,
		publishers:     newPublisherPool(gcpOpener(params.Topics)),
		metrics:        params.Metrics,
		checks:         params.Checks,
		batchSize:      batch,
		maxAttempts:    attempts,
		publishTimeout: timeout,
		pace:           newPacer(poll, maxBackoff, pollJitter),
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by another drain; a short or empty batch waits one poll
// interval; a failed drain backs off.
func (r *Relay) Run(ctx context.Context) error {
	defer r.publishers.stopAll()

	for _, check := range r.checks {
		if err := check.Ping(ctx); err != nil {
			r.logg.Error(ctx, fmt.Sprintf("%s not ready", check.Name), err)
			return fmt.Errorf("%s ping failed: %w", check.Name, err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := r.Drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait = r.pace.failed()
			r.logg.Error(r.logg.WithField(ctx, "retry_in", wait.String()), "outbox drain failed", err)
		case handled >= r.batchSize:
			r.pace.reset()
			continue
		default:
			wait = r.pace.idle()
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

type outcome string

const (
	outcomePublished  outcome = "published"
	outcomeRetry      outcome = "retry"
	outcomeDeadLetter outcome = "dead_letter"
)

type delivery struct {
	outcome outcome
	topic   string
	eventID string
	reason  enums.OutboxDLQErrorReason
	err     error
}

// Drain publishes one batch and settles every row in the same transaction.
// It reports how many rows were settled.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	started := r.now()
	var settled []models.OutboxEvent
	var outcomes []outcome

	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			d := r.deliver(ctx, row)
			if err := r.settle(ctx, tx, row, d); err != nil {
				return err
			}
			settled = append(settled, row)
			outcomes = append(outcomes, d.outcome)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	finished := r.now()
	if len(settled) > 0 {
		r.metrics.ObserveDrain(finished.Sub(started))
	}
	for i, row := range settled {
		r.metrics.ObserveSettled(string(row.EventType), string(outcomes[i]))
		if outcomes[i] == outcomePublished {
			r.metrics.ObserveLag(row.CreatedAt, finished)
		}
	}
	return len(settled), nil
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return delivery{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}

	d := delivery{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}
	err = r.publish(ctx, row, resolved)

	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		d.outcome = outcomePublished
	case errors.As(err, &nonRetryable):
		d.outcome, d.reason, d.err = outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case row.AttemptCount+1 >= r.maxAttempts:
		d.outcome, d.reason = outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts
		d.err = fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
	default:
		d.outcome, d.err = outcomeRetry, err
	}
	return d
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, newMessage(row, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %q returned no publish result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// newMessage carries the stored envelope as-is; attributes let subscribers
// filter and deduplicate without decoding the body.
func newMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	eventID := resolved.Envelope.EventID
	if eventID == "" {
		eventID = row.ID.String()
	}
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
			"version":        strconv.Itoa(resolved.Envelope.Version),
		},
	}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	ctx = r.logg.WithFields(ctx, rowFields(row, d))

	switch d.outcome {
	case outcomePublished:
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark outbox %s published: %w", row.ID, err)
		}
		r.logg.Debug(ctx, "outbox event published")
	case outcomeRetry:
		r.logg.Warn(r.logg.WithField(ctx, "error", d.err.Error()), "outbox publish failed, will retry")
		if err := r.events.MarkFailedTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark outbox %s failed: %w", row.ID, err)
		}
	case outcomeDeadLetter:
		r.logg.Warn(r.logg.WithField(ctx, "error", d.err.Error()), "outbox event dead-lettered")
		if err := r.deadLetters.InsertTx(tx, deadLetter(row, d, r.now())); err != nil {
			return fmt.Errorf("dead-letter outbox %s: %w", row.ID, err)
		}
		if err := r.events.MarkTerminalTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark outbox %s terminal: %w", row.ID, err)
		}
	}
	return nil
}

func deadLetter(row models.OutboxEvent, d delivery, failedAt time.Time) models.OutboxDLQ {
	var message *string
	if d.err != nil {
		msg := d.err.Error()
		message = &msg
	}
	return models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   d.reason,
		ErrorMessage:  message,
		AttemptCount:  row.AttemptCount,
		FailedAt:      failedAt,
	}
}

func rowFields(row models.OutboxEvent, d delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
		"outcome":        string(d.outcome),
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.eventID != "" {
		fields["event_id"] = d.eventID
	}
	if d.reason != "" {
		fields["error_reason"] = string(d.reason)
	}
	return fields
}
