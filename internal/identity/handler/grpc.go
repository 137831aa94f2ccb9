package handler

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/service"
	"user-session-service/internal/security"
	"user-session-service/internal/server/interceptors"
)

// Server implements identity.v1.IdentityService: login, session expiry checks, and identity
// administration.
type Server struct {
	sessions          *service.SessionManager
	identities        *service.IdentityService
	trustProxyHeaders bool
}

// NewServer returns a new IdentityService gRPC server. Either service may be nil, in which
// case its RPCs return Unimplemented. trustProxyHeaders selects how the login origin is read
// (see interceptors.ClientIP).
func NewServer(sessions *service.SessionManager, identities *service.IdentityService, trustProxyHeaders bool) *Server {
	return &Server{sessions: sessions, identities: identities, trustProxyHeaders: trustProxyHeaders}
}

// Login verifies credentials and opens a session for the caller's address.
func (s *Server) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	token, err := s.sessions.Login(ctx, req.Email, req.Password, interceptors.ClientIP(ctx, s.trustProxyHeaders))
	if err != nil {
		return nil, toStatus(err)
	}
	return &LoginResponse{AccessToken: token}, nil
}

// CheckTokenExpiry reports whether the session behind the token is still active.
func (s *Server) CheckTokenExpiry(ctx context.Context, req *CheckTokenExpiryRequest) (*CheckTokenExpiryResponse, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method CheckTokenExpiry not implemented")
	}
	if req.AccessToken == "" {
		return nil, status.Error(codes.InvalidArgument, "accessToken is required")
	}
	res, err := s.sessions.CheckTransportTokenExpiry(ctx, req.AccessToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CheckTokenExpiryResponse{IsValid: res.IsValid, RefreshToken: res.RefreshToken}, nil
}

// CreateIdentity registers a new identity. It is callable without a token, so it only creates
// user identities; the admin role is granted afterwards through UpdateIdentity.
func (s *Server) CreateIdentity(ctx context.Context, req *CreateIdentityRequest) (*IdentityResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method CreateIdentity not implemented")
	}
	if req.Role.Valid() && req.Role != domain.RoleUser {
		return nil, status.Error(codes.PermissionDenied, "only user identities can be registered; roles are granted by an administrator")
	}
	v, err := s.identities.CreateIdentity(ctx, service.CreateIdentityInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		PhoneNo:  req.PhoneNo,
		Role:     req.Role,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &IdentityResponse{Identity: v}, nil
}

// CheckIdentityPresent reports whether an email is registered.
func (s *Server) CheckIdentityPresent(ctx context.Context, req *CheckIdentityPresentRequest) (*CheckIdentityPresentResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method CheckIdentityPresent not implemented")
	}
	ok, err := s.identities.CheckIdentityPresent(ctx, req.Email)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CheckIdentityPresentResponse{Present: ok}, nil
}

// GetMe returns the caller's identity.
func (s *Server) GetMe(ctx context.Context, req *GetMeRequest) (*IdentityResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method GetMe not implemented")
	}
	id, ok := interceptors.GetIdentityID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
	v, err := s.identities.GetIdentity(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &IdentityResponse{Identity: v}, nil
}

// GetIdentity returns one identity by id.
func (s *Server) GetIdentity(ctx context.Context, req *GetIdentityRequest) (*IdentityResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method GetIdentity not implemented")
	}
	v, err := s.identities.GetIdentity(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &IdentityResponse{Identity: v}, nil
}

// ListIdentities returns every identity.
func (s *Server) ListIdentities(ctx context.Context, req *ListIdentitiesRequest) (*ListIdentitiesResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method ListIdentities not implemented")
	}
	all, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListIdentitiesResponse{Identities: all}, nil
}

// UpdateIdentity changes the supplied fields of an identity.
func (s *Server) UpdateIdentity(ctx context.Context, req *UpdateIdentityRequest) (*IdentityResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method UpdateIdentity not implemented")
	}
	v, err := s.identities.UpdateIdentityDetails(ctx, req.ID, service.IdentityPatch{
		Name:    req.Updates.Name,
		Email:   req.Updates.Email,
		PhoneNo: req.Updates.PhoneNo,
		Role:    req.Updates.Role,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &IdentityResponse{Identity: v}, nil
}

// DeleteIdentity removes every identity with the given email.
func (s *Server) DeleteIdentity(ctx context.Context, req *DeleteIdentityRequest) (*DeleteIdentityResponse, error) {
	if s.identities == nil {
		return nil, status.Error(codes.Unimplemented, "method DeleteIdentity not implemented")
	}
	if err := s.identities.DeleteIdentity(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &DeleteIdentityResponse{}, nil
}

// toStatus maps service and token errors to gRPC status codes. Internal causes are logged, not returned.
func toStatus(err error) error {
	var tooMany *service.TooManySessionsError
	switch {
	case errors.As(err, &tooMany):
		return status.Error(codes.ResourceExhausted, tooMany.Error())
	case errors.Is(err, service.ErrTooManySessions):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, service.ErrInvalidCredentials.Error())
	case errors.Is(err, security.ErrInvalidSignature),
		errors.Is(err, security.ErrExpired),
		errors.Is(err, service.ErrSessionExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		log.Printf("identity: internal error: %v", err)
		return status.Error(codes.Internal, "internal error")
	}
}
