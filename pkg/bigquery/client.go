// Package bigquery wraps the BigQuery client for streaming inserts into the
// analytics dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/foodrescue/rescue-backend/pkg/config"
	"github.com/foodrescue/rescue-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// Table pairs a table name with the columns the writer needs in it.
type Table struct {
	Name   string
	Schema bigquery.Schema
}

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []Table
}

// NewClient connects to the configured dataset and verifies that every table
// exists with at least the expected columns.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...Table) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		return nil, errors.New("bigquery dataset is required")
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bq, dataset: bq.Dataset(dataset), tables: tables}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "tables": len(tables)}), "bigquery client initialized")
	}
	return c, nil
}

// Ping re-reads dataset and table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset "+c.dataset.DatasetID, err)
	}
	var errs error
	for _, table := range c.tables {
		meta, err := c.dataset.Table(table.Name).Metadata(ctx)
		if err != nil {
			errs = multierr.Append(errs, describe("table "+table.Name, err))
			continue
		}
		errs = multierr.Append(errs, missingColumns(table, meta.Schema))
	}
	return errs
}

func describe(what string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s does not exist", what)
	}
	return fmt.Errorf("checking %s: %w", what, err)
}

func missingColumns(want Table, have bigquery.Schema) error {
	present := make(map[string]bool, len(have))
	for _, field := range have {
		present[field.Name] = true
	}
	var missing []string
	for _, field := range want.Schema {
		if !present[field.Name] {
			missing = append(missing, field.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s is missing columns %s", want.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Insert streams rows into table. Rows that provide an insert ID are
// deduplicated by BigQuery on a best-effort basis.
func (c *Client) Insert(ctx context.Context, table string, rows []bigquery.ValueSaver) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Retryable reports whether an insert failure is worth another attempt. A
// batch error is retryable only when every part of it is.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var multi bigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && allRetryable(multi)
	}
	var rows bigquery.PutMultiError
	if errors.As(err, &rows) {
		if len(rows) == 0 {
			return false
		}
		for _, row := range rows {
			if !Retryable(row.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *bigquery.Error
	if errors.As(err, &rowErr) {
		switch rowErr.Reason {
		case "backendError", "internalError", "rateLimitExceeded", "timeout":
			return true
		}
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	switch status.Code(err) {
	case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
		return true
	}
	return false
}

func allRetryable(errs []error) bool {
	for _, err := range errs {
		if !Retryable(err) {
			return false
		}
	}
	return true
}
