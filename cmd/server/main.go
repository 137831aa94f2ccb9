package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-session-service/internal/config"
	healthhandler "user-session-service/internal/health/handler"
	identityhandler "user-session-service/internal/identity/handler"
	"user-session-service/internal/identity/repository"
	"user-session-service/internal/identity/service"
	"user-session-service/internal/policy/engine"
	"user-session-service/internal/security"
	"user-session-service/internal/server"
	"user-session-service/internal/telemetry"
	otelemetry "user-session-service/internal/telemetry/otel"
)

const healthCheckInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelemetry.NewProviders(ctx, otelemetry.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	events := otelemetry.NewEventEmitter(providers.LoggerProvider, providers.MeterProvider)

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()
	log.Printf("identity store: %s", cfg.DAO)

	tokens, err := security.NewTokenCodec(cfg.JWTSecretKey)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	transport, err := security.NewTransportCipher(cfg.AESSecretKey, cfg.LegacyTransport())
	if err != nil {
		log.Fatalf("transport cipher: %v", err)
	}
	if transport.Legacy() {
		log.Println("AUTH_VERSION=v1: access tokens travel unobfuscated")
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	sessions := service.NewSessionManager(store.Store, tokens, transport, hasher, service.SessionConfigFrom(cfg), events)
	identities := service.NewIdentityService(store.Store, hasher)

	evaluator, err := engine.NewOPAEvaluator(ctx, engine.DefaultPolicy, identityhandler.AdminMethods)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	var pinger healthhandler.Pinger
	if store.Pinger != nil {
		pinger = store.Pinger
	}
	health := healthhandler.NewServer(pinger, evaluator, identityhandler.ServiceName)
	go health.Run(ctx, healthCheckInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := server.NewGRPCServer(server.Gate{
		TokenHeaderKey:    cfg.TokenHeaderKey,
		Authenticator:     sessions,
		Evaluator:         evaluator,
		Roles:             identities,
		Events:            events,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})
	server.RegisterServices(s, server.Deps{
		Sessions:          sessions,
		Identities:        identities,
		Health:            health,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down gRPC server...")
	health.Shutdown()
	s.GracefulStop()
	log.Println("gRPC server stopped")

	// Let in-flight async event emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
