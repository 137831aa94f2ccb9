package handler

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger checks a storage dependency (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the authorization engine (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness/liveness. The serving status of the
// whole server ("") and of each named service follows the outcome of the last Refresh.
type Server struct {
	*health.Server
	pinger        Pinger
	policyChecker PolicyChecker
	services      []string
}

// NewServer returns a Health server. pinger and policyChecker may be nil, in which case that
// check is skipped. services are the service names whose status is reported alongside "".
func NewServer(pinger Pinger, policyChecker PolicyChecker, services ...string) *Server {
	return &Server{
		Server:        health.NewServer(),
		pinger:        pinger,
		policyChecker: policyChecker,
		services:      services,
	}
}

// Refresh runs the dependency checks and updates the serving status. Returns the first failure.
func (s *Server) Refresh(ctx context.Context) error {
	err := s.check(ctx)
	st := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.SetServingStatus("", st)
	for _, name := range s.services {
		s.SetServingStatus(name, st)
	}
	return err
}

func (s *Server) check(ctx context.Context) error {
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if s.policyChecker != nil {
		if err := s.policyChecker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}

// Run refreshes the status every interval until ctx is done. Each refresh is bounded by interval.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		if err := s.Refresh(checkCtx); err != nil {
			log.Printf("health: not serving: %v", err)
		}
		cancel()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
