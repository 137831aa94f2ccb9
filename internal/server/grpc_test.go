package server

import (
	"testing"

	"google.golang.org/grpc"

	healthhandler "user-session-service/internal/health/handler"
	identityhandler "user-session-service/internal/identity/handler"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	callCount int
	services  []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.callCount++
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices_AllServicesRegistered(t *testing.T) {
	mockReg := &mockServiceRegistrar{}
	RegisterServices(mockReg, Deps{Health: healthhandler.NewServer(nil, nil)})

	if mockReg.callCount != 2 {
		t.Fatalf("RegisterService called %d times, want 2", mockReg.callCount)
	}
	if mockReg.services[0] != identityhandler.ServiceName || mockReg.services[1] != "grpc.health.v1.Health" {
		t.Errorf("services = %v", mockReg.services)
	}
}

func TestRegisterServices_HealthNotRegisteredWhenNil(t *testing.T) {
	mockReg := &mockServiceRegistrar{}
	RegisterServices(mockReg, Deps{})
	if mockReg.callCount != 1 {
		t.Errorf("RegisterService called %d times, want 1 (health should not be registered)", mockReg.callCount)
	}
}

func TestPublicMethods(t *testing.T) {
	public := PublicMethods()
	for _, m := range []string{identityhandler.MethodLogin, identityhandler.MethodCheckTokenExpiry, "/grpc.health.v1.Health/Check"} {
		if !public[m] {
			t.Errorf("%s should be public", m)
		}
	}
	for _, m := range append([]string{identityhandler.MethodGetMe}, identityhandler.AdminMethods...) {
		if public[m] {
			t.Errorf("%s should not be public", m)
		}
	}
}
