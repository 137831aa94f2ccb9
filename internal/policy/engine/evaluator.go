// Package engine decides whether a caller's role may invoke an RPC method.
package engine

import (
	"context"

	"user-session-service/internal/identity/domain"
)

// Evaluator evaluates method-access policy using OPA or other engines.
type Evaluator interface {
	// Allow reports whether a caller holding role may invoke the full gRPC method name.
	Allow(ctx context.Context, method string, role domain.Role) (bool, error)
}
