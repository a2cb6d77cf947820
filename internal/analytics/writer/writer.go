// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"

	"github.com/foodrescue/rescue-backend/internal/analytics/types"
	pkgbigquery "github.com/foodrescue/rescue-backend/pkg/bigquery"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

type Config struct {
	Table          string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type inserter interface {
	Insert(ctx context.Context, table string, rows []bigquery.ValueSaver) error
}

// ImpactWriter inserts one impact fact per call. Transient BigQuery failures
// are retried with capped exponential backoff; anything else returns at once.
type ImpactWriter struct {
	client  inserter
	table   string
	backoff func() retry.Backoff
}

func New(client inserter, cfg Config) (*ImpactWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("impact table is required")
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	ceiling := cfg.MaxBackoff
	if ceiling < initial {
		ceiling = max(initial, defaultMaxBackoff)
	}

	return &ImpactWriter{
		client: client,
		table:  table,
		backoff: func() retry.Backoff {
			b := retry.NewExponential(initial)
			b = retry.WithCappedDuration(ceiling, b)
			return retry.WithMaxRetries(uint64(attempts-1), b)
		},
	}, nil
}

func (w *ImpactWriter) InsertImpactFact(ctx context.Context, row types.ImpactFactRow) error {
	rows := []bigquery.ValueSaver{row}
	attempts := 0
	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempts++
		err := w.client.Insert(ctx, w.table, rows)
		if err != nil && pkgbigquery.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert into %s (%d attempts): %w", w.table, attempts, err)
	}
	return nil
}

// EncodeJSON converts a payload for a BigQuery JSON column. nil and empty raw
// JSON become NULL.
func EncodeJSON(payload any) (bigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return bigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return bigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return bigquery.NullJSON{}, nil
	}
	return bigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
