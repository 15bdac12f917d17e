package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var _ port.DocumentStore = (*Client)(nil)

// GetOnce reads every row of a table. Reads are retried with backoff.
func (c *Client) GetOnce(ctx context.Context, collection string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOnce")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", collection))

	start := time.Now()
	var docs []domain.Document
	err := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
		body, err := resilience.Execute(c.cb, "supabase", func() ([]byte, error) {
			return c.doRequest(ctx, "GET", collection+"?select=*")
		})
		if err != nil {
			return err
		}
		docs, err = decodeRows(body)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, wrapErr(err)
	}

	c.logger.Debug("supabase: table read",
		zap.String("table", collection),
		zap.Int("rows", len(docs)),
		zap.Duration("duration", time.Since(start)),
	)
	return docs, nil
}

// Add inserts a row. A uuid id is assigned when fields carry none.
func (c *Client) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Add")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", collection))

	row := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	id, _ := row["id"].(string)
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}

	_, err := resilience.Execute(c.cb, "supabase", func() ([]byte, error) {
		return c.doPost(ctx, collection, row)
	})
	if err != nil {
		span.RecordError(err)
		return "", wrapErr(err)
	}
	return id, nil
}

// Update patches the given columns of one row.
func (c *Client) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", collection), attribute.String("supabase.id", id))

	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		patch[k] = v
	}

	body, err := resilience.Execute(c.cb, "supabase", func() ([]byte, error) {
		return c.doPatch(ctx, rowPath(collection, id), patch)
	})
	if err != nil {
		span.RecordError(err)
		return wrapErr(err)
	}
	if emptyRows(body) {
		return &domain.ErrNotFound{Resource: collection, ID: id}
	}
	return nil
}

// Delete removes one row.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("supabase.table", collection), attribute.String("supabase.id", id))

	body, err := resilience.Execute(c.cb, "supabase", func() ([]byte, error) {
		return c.doDelete(ctx, rowPath(collection, id))
	})
	if err != nil {
		span.RecordError(err)
		return wrapErr(err)
	}
	if emptyRows(body) {
		return &domain.ErrNotFound{Resource: collection, ID: id}
	}
	return nil
}

func rowPath(table, id string) string {
	return fmt.Sprintf("%s?id=eq.%s", table, url.QueryEscape(id))
}

// decodeRows turns a PostgREST JSON array into documents keyed by the id column.
func decodeRows(body []byte) ([]domain.Document, error) {
	if emptyRows(body) {
		return []domain.Document{}, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		var id string
		switch v := row["id"].(type) {
		case string:
			id = v
		case nil:
		default:
			id = fmt.Sprint(v)
		}
		delete(row, "id")
		docs = append(docs, domain.Document{ID: id, Fields: row})
	}
	return docs, nil
}

func wrapErr(err error) error {
	var notFound *domain.ErrNotFound
	var open *domain.ErrCircuitOpen
	if errors.As(err, &notFound) || errors.As(err, &open) || errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.ErrExternalService{Service: "supabase", Err: err}
}
