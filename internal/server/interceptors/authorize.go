package interceptors

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/service"
	"user-session-service/internal/policy/engine"
)

// RoleResolver returns the current role of an identity.
type RoleResolver interface {
	RoleOf(ctx context.Context, identityID string) (domain.Role, error)
}

// AuthorizeUnary returns a unary server interceptor that resolves the caller's role and asks
// evaluator whether it may invoke the method. It must run after AuthUnary. Public methods skip
// the check.
func AuthorizeUnary(evaluator engine.Evaluator, roles RoleResolver, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		id, ok := GetIdentityID(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}
		role, err := roles.RoleOf(ctx, id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return nil, status.Error(codes.Unauthenticated, "identity no longer exists")
			}
			log.Printf("authz: resolve role for %s: %v", id, err)
			return nil, status.Error(codes.Internal, "internal error")
		}
		allowed, err := evaluator.Allow(ctx, info.FullMethod, role)
		if err != nil {
			log.Printf("authz: evaluate %s: %v", info.FullMethod, err)
			return nil, status.Error(codes.Internal, "internal error")
		}
		if !allowed {
			return nil, status.Error(codes.PermissionDenied, "permission denied")
		}
		return handler(WithRole(ctx, role), req)
	}
}
