package handler

import (
	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/service"
)

// LoginRequest is the Login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the transport-obfuscated access token.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// CheckTokenExpiryRequest carries the access token as returned by Login.
type CheckTokenExpiryRequest struct {
	AccessToken string `json:"accessToken"`
}

// CheckTokenExpiryResponse reports session validity and, after expiry, a refresh token.
type CheckTokenExpiryResponse struct {
	IsValid      bool   `json:"isValid"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// CreateIdentityRequest is the CreateIdentity payload.
type CreateIdentityRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	PhoneNo  string      `json:"phoneNo,omitempty"`
	// Role must be user (0) or omitted.
	Role domain.Role `json:"role"`
}

// IdentityResponse wraps one identity.
type IdentityResponse struct {
	Identity *service.IdentityView `json:"identity"`
}

// CheckIdentityPresentRequest is the CheckIdentityPresent payload.
type CheckIdentityPresentRequest struct {
	Email string `json:"email"`
}

// CheckIdentityPresentResponse reports whether the email is registered.
type CheckIdentityPresentResponse struct {
	Present bool `json:"present"`
}

// GetMeRequest is empty; the caller is taken from the access token.
type GetMeRequest struct{}

// GetIdentityRequest is the GetIdentity payload.
type GetIdentityRequest struct {
	ID string `json:"id"`
}

// ListIdentitiesRequest is empty.
type ListIdentitiesRequest struct{}

// ListIdentitiesResponse lists every identity.
type ListIdentitiesResponse struct {
	Identities []*service.IdentityView `json:"identities"`
}

// UpdateIdentityRequest changes the non-null fields of Updates on identity ID.
type UpdateIdentityRequest struct {
	ID      string         `json:"id"`
	Updates IdentityUpdate `json:"updates"`
}

// IdentityUpdate lists the updatable identity fields; absent fields are left unchanged.
type IdentityUpdate struct {
	Name    *string      `json:"name,omitempty"`
	Email   *string      `json:"email,omitempty"`
	PhoneNo *string      `json:"phoneNo,omitempty"`
	Role    *domain.Role `json:"role,omitempty"`
}

// DeleteIdentityRequest is the DeleteIdentity payload.
type DeleteIdentityRequest struct {
	Email string `json:"email"`
}

// DeleteIdentityResponse is empty.
type DeleteIdentityResponse struct{}
