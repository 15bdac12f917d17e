package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/port"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var relayTracer = otel.Tracer("service/relay")

// Relay sends one chat message through the relay function. Nothing is
// retried or queued.
type Relay struct {
	functions port.FunctionInvoker
	function  string
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewRelay creates a relay client for the named function.
func NewRelay(functions port.FunctionInvoker, function string, metrics *observability.Metrics, logger *zap.Logger) *Relay {
	return &Relay{functions: functions, function: function, metrics: metrics, logger: logger}
}

// Send relays text and returns a receipt.
func (r *Relay) Send(ctx context.Context, text string) (*domain.NotificationReceipt, error) {
	ctx, span := relayTracer.Start(ctx, "Relay.Send")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "is required"}
	}

	id := ulid.Make().String()
	span.SetAttributes(attribute.String("relay.id", id))

	start := time.Now()
	_, err := r.functions.Call(ctx, r.function, map[string]string{"text": text})
	r.metrics.RecordDuration("relay.send", time.Since(start))
	if err != nil {
		r.metrics.IncrRelay("error")
		r.metrics.IncrExternalError(r.function)
		r.logger.Warn("relay send failed", zap.String("relay_id", id), zap.Error(err))
		return nil, err
	}

	r.metrics.IncrRelay("ok")
	r.logger.Info("relay message sent", zap.String("relay_id", id), zap.Int("length", len(text)))
	return &domain.NotificationReceipt{ID: id, Status: "sent", SentAt: time.Now().UTC()}, nil
}
