package interceptors

import (
	"context"
	"errors"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"user-session-service/internal/identity/service"
)

// RefreshTokenHeader is the response header carrying a refresh token when the caller's session
// has expired but may still be renewed.
const RefreshTokenHeader = "x-refresh-token"

// Authenticator resolves an obfuscated access token to its claims and session state.
type Authenticator interface {
	Authenticate(ctx context.Context, obfuscated string) (*service.AuthResult, error)
}

// AuthUnary returns a unary server interceptor that reads the obfuscated access token from the
// headerKey metadata entry and authenticates it. Claims are stored in the context for protected
// RPCs. When the session has expired but holds a usable refresh token the call proceeds and the
// refresh token is sent back in the RefreshTokenHeader response header.
// publicMethods is the set of full method names that do not require a token (e.g. Login).
func AuthUnary(auth Authenticator, headerKey string, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	headerKey = strings.ToLower(headerKey)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		token := extractToken(ctx, headerKey)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		res, err := auth.Authenticate(ctx, token)
		if err != nil {
			return nil, authStatus(err)
		}
		if rt := res.Expiry.RefreshToken; rt != "" {
			if err := grpc.SetHeader(ctx, metadata.Pairs(RefreshTokenHeader, rt)); err != nil {
				log.Printf("auth: set refresh token header: %v", err)
			}
		}
		return handler(WithClaims(ctx, res.Claims), req)
	}
}

func authStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		return status.Error(codes.Unauthenticated, service.ErrSessionExpired.Error())
	case errors.Is(err, service.ErrInternal):
		log.Printf("auth: authenticate: %v", err)
		return status.Error(codes.Internal, "internal error")
	default:
		return status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
}

// extractToken returns the token from ctx metadata, or "" if missing.
func extractToken(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
