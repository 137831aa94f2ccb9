// Package telemetry defines authentication events and best-effort delivery of them.
package telemetry

import (
	"context"
	"time"
)

// Event types emitted by the session manager and the transport gate.
const (
	EventLoginSuccess        = "login_success"
	EventLoginFailure        = "login_failure"
	EventSessionLimitReached = "session_limit_reached"
	EventSessionReplaced     = "session_replaced"
	EventRefreshTokenIssued  = "refresh_token_issued"
	EventSessionTerminal     = "session_terminal"
	EventAccessDenied        = "access_denied"
)

// Event is one authentication event. It never carries passwords or tokens.
type Event struct {
	Type       string
	IdentityID string
	Email      string
	Origin     string
	// Method is the full RPC method name for gate events.
	Method string
	// Reason is a short machine-readable cause for failure events (e.g. "unknown_email").
	Reason    string
	CreatedAt time.Time
}

// EventEmitter emits events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
