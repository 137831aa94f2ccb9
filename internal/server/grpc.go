package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "user-session-service/internal/health/handler"
	identityhandler "user-session-service/internal/identity/handler"
	"user-session-service/internal/identity/service"
	"user-session-service/internal/policy/engine"
	_ "user-session-service/internal/server/codec"
	"user-session-service/internal/server/interceptors"
	"user-session-service/internal/telemetry"
)

// Health RPCs are always public.
var healthMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/List",
}

// Deps holds service dependencies for gRPC handlers.
type Deps struct {
	// Sessions serves Login and CheckTokenExpiry. If nil, those RPCs return Unimplemented.
	Sessions *service.SessionManager
	// Identities serves identity administration. If nil, those RPCs return Unimplemented.
	Identities *service.IdentityService
	// Health is the grpc.health.v1 server. If nil, the health service is not registered.
	Health *healthhandler.Server
	// TrustProxyHeaders reads the login origin from x-forwarded-for / x-real-ip.
	TrustProxyHeaders bool
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - identity.v1.IdentityService → internal/identity/handler
//   - grpc.health.v1.Health       → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	identityhandler.RegisterIdentityServiceServer(s, identityhandler.NewServer(deps.Sessions, deps.Identities, deps.TrustProxyHeaders))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// Gate configures the interceptor chain in front of every unary RPC.
type Gate struct {
	// TokenHeaderKey is the metadata key carrying the obfuscated access token.
	TokenHeaderKey string
	Authenticator  interceptors.Authenticator
	Evaluator      engine.Evaluator
	Roles          interceptors.RoleResolver
	// Events receives access_denied events. May be nil.
	Events telemetry.EventEmitter
	// TrustProxyHeaders reads the event origin from x-forwarded-for / x-real-ip.
	TrustProxyHeaders bool
}

// PublicMethods returns the full method names callable without an access token.
func PublicMethods() map[string]bool {
	m := make(map[string]bool, len(identityhandler.PublicMethods)+len(healthMethods))
	for _, name := range identityhandler.PublicMethods {
		m[name] = true
	}
	for _, name := range healthMethods {
		m[name] = true
	}
	return m
}

// NewGRPCServer returns a gRPC server with OTel instrumentation and the gate interceptors:
// denial events, then authentication, then role authorization.
func NewGRPCServer(gate Gate, opts ...grpc.ServerOption) *grpc.Server {
	public := PublicMethods()
	skipEvents := map[string]bool{}
	for _, name := range healthMethods {
		skipEvents[name] = true
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.DeniedUnary(gate.Events, skipEvents, gate.TrustProxyHeaders),
			interceptors.AuthUnary(gate.Authenticator, gate.TokenHeaderKey, public),
			interceptors.AuthorizeUnary(gate.Evaluator, gate.Roles, public),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}
