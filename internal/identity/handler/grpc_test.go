package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/service"
	"user-session-service/internal/security"
)

func TestServer_NilServicesUnimplemented(t *testing.T) {
	srv := NewServer(nil, nil, false)
	ctx := context.Background()

	calls := map[string]func() error{
		"Login": func() error { _, err := srv.Login(ctx, &LoginRequest{}); return err },
		"CheckTokenExpiry": func() error {
			_, err := srv.CheckTokenExpiry(ctx, &CheckTokenExpiryRequest{AccessToken: "x"})
			return err
		},
		"CreateIdentity":       func() error { _, err := srv.CreateIdentity(ctx, &CreateIdentityRequest{}); return err },
		"CheckIdentityPresent": func() error { _, err := srv.CheckIdentityPresent(ctx, &CheckIdentityPresentRequest{}); return err },
		"GetMe":                func() error { _, err := srv.GetMe(ctx, &GetMeRequest{}); return err },
		"GetIdentity":          func() error { _, err := srv.GetIdentity(ctx, &GetIdentityRequest{}); return err },
		"ListIdentities":       func() error { _, err := srv.ListIdentities(ctx, &ListIdentitiesRequest{}); return err },
		"UpdateIdentity":       func() error { _, err := srv.UpdateIdentity(ctx, &UpdateIdentityRequest{}); return err },
		"DeleteIdentity":       func() error { _, err := srv.DeleteIdentity(ctx, &DeleteIdentityRequest{}); return err },
	}
	for name, call := range calls {
		if code := status.Code(call()); code != codes.Unimplemented {
			t.Errorf("%s code = %v, want Unimplemented", name, code)
		}
	}
}

func TestServer_CheckTokenExpiryRequiresToken(t *testing.T) {
	srv := NewServer(&service.SessionManager{}, nil, false)
	_, err := srv.CheckTokenExpiry(context.Background(), &CheckTokenExpiryRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestServer_GetMeWithoutClaims(t *testing.T) {
	srv := NewServer(nil, &service.IdentityService{}, false)
	_, err := srv.GetMe(context.Background(), &GetMeRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestServer_CreateIdentityRefusesAdminRole(t *testing.T) {
	srv := NewServer(nil, &service.IdentityService{}, false)
	_, err := srv.CreateIdentity(context.Background(), &CreateIdentityRequest{
		Name: "Mallory", Email: "mallory@example.com", Password: "Passw0rd!", Role: domain.RoleAdmin,
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("code = %v, want PermissionDenied", status.Code(err))
	}
}

func TestToStatus(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"too many sessions", &service.TooManySessionsError{Limit: 3}, codes.ResourceExhausted},
		{"wrapped too many", fmt.Errorf("login: %w", service.ErrTooManySessions), codes.ResourceExhausted},
		{"invalid credentials", service.ErrInvalidCredentials, codes.Unauthenticated},
		{"bad signature", fmt.Errorf("%w: tampered", security.ErrInvalidSignature), codes.Unauthenticated},
		{"token expired", security.ErrExpired, codes.Unauthenticated},
		{"session expired", service.ErrSessionExpired, codes.Unauthenticated},
		{"not found", fmt.Errorf("%w: identity", service.ErrNotFound), codes.NotFound},
		{"invalid argument", fmt.Errorf("%w: email", service.ErrInvalidArgument), codes.InvalidArgument},
		{"duplicate email", service.ErrEmailAlreadyRegistered, codes.AlreadyExists},
		{"internal", fmt.Errorf("%w: store down", service.ErrInternal), codes.Internal},
		{"unknown", errors.New("boom"), codes.Internal},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := status.Code(toStatus(tc.err)); got != tc.want {
				t.Errorf("toStatus(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestToStatus_InternalHidesCause(t *testing.T) {
	st, _ := status.FromError(toStatus(errors.New("pq: connection refused")))
	if st.Message() != "internal error" {
		t.Errorf("message = %q, want %q", st.Message(), "internal error")
	}
}

func TestServiceDesc(t *testing.T) {
	if ServiceDesc.ServiceName != ServiceName {
		t.Errorf("ServiceName = %q", ServiceDesc.ServiceName)
	}
	if ServiceDesc.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", ServiceDesc.Metadata)
	}
	if len(ServiceDesc.Methods) != 9 {
		t.Errorf("methods = %d, want 9", len(ServiceDesc.Methods))
	}
	public := map[string]bool{}
	for _, m := range PublicMethods {
		public[m] = true
	}
	for _, m := range AdminMethods {
		if public[m] {
			t.Errorf("%s is both public and admin", m)
		}
	}
}
