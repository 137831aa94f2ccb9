package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"

	"user-session-service/internal/identity/domain"
)

const policyQuery = "data.usersession.authz.allow"

// DefaultPolicy admits any role to methods not listed in data.admin_methods and only admins to
// the listed ones. A replacement policy must define data.usersession.authz.allow.
const DefaultPolicy = `package usersession.authz

default allow := false

admin_method if {
	some m in data.admin_methods
	m == input.method
}

allow if {
	not admin_method
}

allow if {
	input.role == "admin"
}
`

// OPAEvaluator evaluates method access with a prepared Rego query.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultPolicy when empty) with adminMethods exposed as
// data.admin_methods.
func NewOPAEvaluator(ctx context.Context, policy string, adminMethods []string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	methods := make([]any, 0, len(adminMethods))
	for _, m := range adminMethods {
		methods = append(methods, m)
	}
	store := inmem.NewFromObject(map[string]any{"admin_methods": methods})
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("authz.rego", policy),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allow evaluates the policy for method and role. An undefined result denies.
func (e *OPAEvaluator) Allow(ctx context.Context, method string, role domain.Role) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"method": method,
		"role":   role.String(),
	}))
	if err != nil {
		return false, fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, errors.New("authz policy: allow is not a boolean")
	}
	return allowed, nil
}

// HealthCheck verifies that the prepared policy still evaluates.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allow(ctx, "/grpc.health.v1.Health/Check", domain.RoleUser)
	return err
}
