package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"user-session-service/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil, nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLoginSuccess}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider, nil)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attrsOf(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap, nil)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		Type:       telemetry.EventLoginFailure,
		IdentityID: "id-1",
		Email:      "u@example.com",
		Origin:     "10.0.0.1",
		Reason:     "wrong_password",
		CreatedAt:  at,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want Warn for a failure", rec.Severity())
	}
	if got := rec.Body().AsString(); got != telemetry.EventLoginFailure {
		t.Errorf("body = %q, want %q", got, telemetry.EventLoginFailure)
	}
	want := map[string]string{
		"event_type":  telemetry.EventLoginFailure,
		"identity_id": "id-1",
		"email":       "u@example.com",
		"origin":      "10.0.0.1",
		"reason":      "wrong_password",
	}
	attrs := attrsOf(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_PartialFields(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap, nil)
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLoginSuccess}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	attrs := attrsOf(cap.rec)
	if attrs["event_type"] != telemetry.EventLoginSuccess {
		t.Errorf("event_type = %q", attrs["event_type"])
	}
	for _, k := range []string{"identity_id", "email", "origin", "reason"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("attr %q should not be set for empty field", k)
		}
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want Info", cap.rec.Severity())
	}
}

func TestEmit_ZeroTimestamp_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap, nil)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLoginSuccess}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}

func TestEmit_CountsEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	em := NewEventEmitterWithLogger(&recordCapture{}, mp)
	ctx := context.Background()
	for _, typ := range []string{telemetry.EventLoginSuccess, telemetry.EventLoginSuccess, telemetry.EventRefreshTokenIssued} {
		if err := em.Emit(ctx, &telemetry.Event{Type: typ}); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "auth.events" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("auth.events data = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("event_type")
				counts[v.AsString()] += dp.Value
			}
		}
	}
	if counts[telemetry.EventLoginSuccess] != 2 || counts[telemetry.EventRefreshTokenIssued] != 1 {
		t.Errorf("auth.events = %v, want login_success=2 refresh_token_issued=1", counts)
	}
}
