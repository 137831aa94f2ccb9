package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"user-session-service/internal/telemetry"
)

// DeniedUnary returns a unary server interceptor that emits an access_denied event for every RPC
// rejected with Unauthenticated or PermissionDenied. Best-effort: emission never affects the RPC.
// It runs outermost, so events carry the origin and method but not the caller identity.
// If emitter is nil, the interceptor no-ops. skipMethods is the set of full method names to not emit.
// trustProxyHeaders is passed to ClientIP.
func DeniedUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool, trustProxyHeaders bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if emitter == nil || err == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		if code != codes.Unauthenticated && code != codes.PermissionDenied {
			return resp, err
		}
		ev := &telemetry.Event{
			Type:   telemetry.EventAccessDenied,
			Origin: ClientIP(ctx, trustProxyHeaders),
			Method: info.FullMethod,
			Reason: code.String(),
		}
		telemetry.EmitAsync(emitter, ev)
		return resp, err
	}
}
