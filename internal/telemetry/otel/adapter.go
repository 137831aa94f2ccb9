package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"user-session-service/internal/telemetry"
)

const instrumentationName = "user-session-service/auth"

// recordEmitter is the part of otellog.Logger the emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given
// LoggerProvider and counts them on the auth.events counter of meterProvider.
// If provider is nil, returns a no-op emitter. meterProvider may be nil.
func NewEventEmitter(provider *sdklog.LoggerProvider, meterProvider metric.MeterProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName), meterProvider)
}

// NewEventEmitterWithLogger is NewEventEmitter over an arbitrary record sink.
func NewEventEmitterWithLogger(logger recordEmitter, meterProvider metric.MeterProvider) telemetry.EventEmitter {
	e := &otelEmitter{logger: logger}
	if meterProvider != nil {
		counter, err := meterProvider.Meter(instrumentationName).Int64Counter("auth.events",
			metric.WithDescription("Authentication events by type"))
		if err == nil {
			e.counter = counter
		}
	}
	return e
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger  recordEmitter
	counter metric.Int64Counter
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if event.CreatedAt.IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(severity(event.Type))
	rec.SetSeverityText(severity(event.Type).String())
	rec.SetBody(otellog.StringValue(event.Type))

	rec.AddAttributes(otellog.String("event_type", event.Type))
	if event.IdentityID != "" {
		rec.AddAttributes(otellog.String("identity_id", event.IdentityID))
	}
	if event.Email != "" {
		rec.AddAttributes(otellog.String("email", event.Email))
	}
	if event.Origin != "" {
		rec.AddAttributes(otellog.String("origin", event.Origin))
	}
	if event.Method != "" {
		rec.AddAttributes(otellog.String("rpc_method", event.Method))
	}
	if event.Reason != "" {
		rec.AddAttributes(otellog.String("reason", event.Reason))
	}
	e.logger.Emit(ctx, rec)

	if e.counter != nil {
		e.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", event.Type)))
	}
	return nil
}

func severity(eventType string) otellog.Severity {
	switch eventType {
	case telemetry.EventLoginFailure, telemetry.EventSessionLimitReached, telemetry.EventSessionTerminal, telemetry.EventAccessDenied:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
