package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-session-service/internal/config"
	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/repository"
	"user-session-service/internal/security"
	"user-session-service/internal/storage"
	"user-session-service/internal/telemetry"
)

// SessionConfig holds the session limits read once at startup.
type SessionConfig struct {
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	MaxSessions int
}

// SessionConfigFrom extracts the session limits from cfg.
func SessionConfigFrom(cfg *config.Config) SessionConfig {
	return SessionConfig{
		AccessTTL:   cfg.AccessTTL(),
		RefreshTTL:  cfg.RefreshTTL(),
		MaxSessions: cfg.MaxActiveSessions,
	}
}

// ExpiryResult is the outcome of an expiry check. RefreshToken is set only when the session
// has expired and its refresh token is still usable.
type ExpiryResult struct {
	IsValid      bool
	RefreshToken string
}

// AuthResult is what Authenticate hands to the transport gate.
type AuthResult struct {
	Claims *security.Claims
	Expiry ExpiryResult
}

// SessionManager issues, validates, expires, and refreshes access credentials and enforces the
// per-identity session limit. It holds no per-request state.
//
// Session slots are keyed by origin address. New slots are pushed with the limit and origin as
// store preconditions, so concurrent logins cannot exceed the limit under the document store; a
// login that loses that race gets TooManySessionsError even when it raced for its own origin.
// Under the flat store every update is read-modify-write of the whole identity, so concurrent
// logins for one identity can still drop each other's session writes.
type SessionManager struct {
	store     repository.Repository
	tokens    *security.TokenCodec
	transport *security.TransportCipher
	hasher    passwordVerifier
	cfg       SessionConfig
	events    telemetry.EventEmitter
	now       func() time.Time
}

// passwordVerifier is the part of security.Hasher Login uses.
type passwordVerifier interface {
	Matches(hash, password string) bool
	CompareDummy(password string) bool
}

// NewSessionManager returns a SessionManager. events may be nil.
func NewSessionManager(
	store repository.Repository,
	tokens *security.TokenCodec,
	transport *security.TransportCipher,
	hasher *security.Hasher,
	cfg SessionConfig,
	events telemetry.EventEmitter,
) *SessionManager {
	return &SessionManager{
		store:     store,
		tokens:    tokens,
		transport: transport,
		hasher:    hasher,
		cfg:       cfg,
		events:    events,
		now:       time.Now,
	}
}

// Login verifies email and password, admits the session for origin, and returns the
// transport-obfuscated access token. A login from an origin that already holds a session
// replaces that session in place; a new origin is refused once MaxSessions are held.
func (m *SessionManager) Login(ctx context.Context, email, password, origin string) (string, error) {
	email = domain.NormalizeEmail(email)
	origin = domain.NormalizeOrigin(origin)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	if origin == "" {
		return "", fmt.Errorf("%w: origin address required", ErrInvalidArgument)
	}

	rec, err := m.store.FindOneByFields(ctx, storage.Fields{domain.FieldEmail: email})
	if err != nil {
		return "", storeErr("find identity", err)
	}
	if rec == nil {
		m.hasher.CompareDummy(password)
		m.emit(telemetry.EventLoginFailure, "", email, origin, "unknown_email")
		return "", ErrInvalidCredentials
	}
	if !m.hasher.Matches(rec.Value.Password, password) {
		m.emit(telemetry.EventLoginFailure, rec.ID, email, origin, "wrong_password")
		return "", ErrInvalidCredentials
	}

	existing := rec.Value.SessionByOrigin(origin)
	if existing == nil && len(rec.Value.Sessions) >= m.cfg.MaxSessions {
		m.emit(telemetry.EventSessionLimitReached, rec.ID, email, origin, "")
		return "", &TooManySessionsError{Limit: m.cfg.MaxSessions}
	}

	accessToken, err := m.tokens.Sign(security.Claims{IdentityID: rec.ID, Email: rec.Value.Email}, 0)
	if err != nil {
		return "", fmt.Errorf("%w: sign access token: %w", ErrInternal, err)
	}
	createdAt := m.now().UnixMilli()
	expiresAt := createdAt + m.cfg.AccessTTL.Milliseconds()

	var u storage.Update
	event := telemetry.EventLoginSuccess
	if existing != nil {
		event = telemetry.EventSessionReplaced
		u.SetElement = &storage.SetElement{
			Field: domain.FieldSessions,
			Match: storage.Fields{domain.SessionFieldOriginAddress: origin},
			Set: storage.Fields{
				domain.SessionFieldAccessToken:  accessToken,
				domain.SessionFieldCreatedAt:    createdAt,
				domain.SessionFieldExpiresAt:    expiresAt,
				domain.SessionFieldRefreshToken: nil,
			},
		}
	} else {
		u.Push = &storage.Push{
			Field: domain.FieldSessions,
			Value: domain.Session{
				AccessToken:   accessToken,
				OriginAddress: origin,
				CreatedAt:     createdAt,
				ExpiresAt:     expiresAt,
			},
			MaxLen: m.cfg.MaxSessions,
			Unless: storage.Fields{domain.SessionFieldOriginAddress: origin},
		}
	}
	if err := m.store.Update(ctx, rec.ID, u); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			// A concurrent login filled the last slot or claimed this origin first.
			m.emit(telemetry.EventSessionLimitReached, rec.ID, email, origin, "")
			return "", &TooManySessionsError{Limit: m.cfg.MaxSessions}
		case errors.Is(err, storage.ErrNotFound):
			// The identity or its slot went away after the credentials were checked.
			m.emit(telemetry.EventLoginFailure, rec.ID, email, origin, "identity_gone")
			return "", ErrInvalidCredentials
		default:
			return "", fmt.Errorf("%w: persist session: %w", ErrInternal, err)
		}
	}

	obfuscated, err := m.transport.Encrypt(accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: obfuscate access token: %w", ErrInternal, err)
	}
	m.emit(event, rec.ID, email, origin, "")
	return obfuscated, nil
}

// Authenticate reverses transport obfuscation, verifies the token, and evaluates its session.
// A session that has expired but still has a usable refresh token passes, with the refresh
// token in the result; an expired session without one fails with ErrSessionExpired.
func (m *SessionManager) Authenticate(ctx context.Context, obfuscated string) (*AuthResult, error) {
	if obfuscated == "" {
		return nil, fmt.Errorf("%w: no token provided", security.ErrInvalidSignature)
	}
	accessToken, err := m.transport.Decrypt(obfuscated)
	if err != nil {
		return nil, err
	}
	claims, err := m.tokens.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	res, err := m.checkSession(ctx, accessToken, claims)
	if err != nil {
		return nil, err
	}
	if !res.IsValid && res.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	return &AuthResult{Claims: claims, Expiry: *res}, nil
}

// CheckTokenExpiry evaluates the session owning accessToken (an unobfuscated signed token).
// The first check after expiry mints and stores a refresh token; later checks hand back the
// same refresh token until it expires, after which the session is terminal.
func (m *SessionManager) CheckTokenExpiry(ctx context.Context, accessToken string) (*ExpiryResult, error) {
	claims, err := m.tokens.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	return m.checkSession(ctx, accessToken, claims)
}

// CheckTransportTokenExpiry is CheckTokenExpiry for a token as handed to the client by Login.
func (m *SessionManager) CheckTransportTokenExpiry(ctx context.Context, obfuscated string) (*ExpiryResult, error) {
	accessToken, err := m.transport.Decrypt(obfuscated)
	if err != nil {
		return nil, err
	}
	return m.CheckTokenExpiry(ctx, accessToken)
}

func (m *SessionManager) checkSession(ctx context.Context, accessToken string, claims *security.Claims) (*ExpiryResult, error) {
	rec, err := m.store.FindOneByFields(ctx, storage.Fields{domain.FieldEmail: claims.Email})
	if err != nil {
		return nil, storeErr("find identity", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: identity", ErrNotFound)
	}
	sess := rec.Value.SessionByAccessToken(accessToken)
	if sess == nil {
		return nil, fmt.Errorf("%w: session", ErrNotFound)
	}

	now := m.now()
	nowMs := now.UnixMilli()
	if nowMs < sess.ExpiresAt {
		return &ExpiryResult{IsValid: true}, nil
	}
	if rt := sess.RefreshToken; rt != nil {
		if nowMs >= rt.ExpiresAt {
			m.emit(telemetry.EventSessionTerminal, rec.ID, rec.Value.Email, sess.OriginAddress, "")
			return &ExpiryResult{IsValid: false}, nil
		}
		return &ExpiryResult{IsValid: false, RefreshToken: rt.Token}, nil
	}
	token, err := m.generateRefreshToken(ctx, rec, accessToken, now)
	if err != nil {
		return nil, err
	}
	m.emit(telemetry.EventRefreshTokenIssued, rec.ID, rec.Value.Email, sess.OriginAddress, "")
	return &ExpiryResult{IsValid: false, RefreshToken: token}, nil
}

// generateRefreshToken mints a refresh token for the session holding accessToken and stores it
// on that session. ErrNotFound if the session was superseded between read and write.
func (m *SessionManager) generateRefreshToken(ctx context.Context, rec *storage.Record[domain.Identity], accessToken string, now time.Time) (string, error) {
	token, err := m.tokens.Sign(security.Claims{
		IdentityID: rec.ID,
		Name:       rec.Value.Name,
		Email:      rec.Value.Email,
	}, m.cfg.RefreshTTL)
	if err != nil {
		return "", fmt.Errorf("%w: sign refresh token: %w", ErrInternal, err)
	}
	createdAt := now.UnixMilli()
	refresh := domain.RefreshToken{
		Token:     token,
		CreatedAt: createdAt,
		ExpiresAt: createdAt + m.cfg.RefreshTTL.Milliseconds(),
	}
	err = m.store.Update(ctx, rec.ID, storage.Update{SetElement: &storage.SetElement{
		Field: domain.FieldSessions,
		Match: storage.Fields{domain.SessionFieldAccessToken: accessToken},
		Set:   storage.Fields{domain.SessionFieldRefreshToken: refresh},
	}})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: session superseded", ErrNotFound)
		}
		return "", storeErr("persist refresh token", err)
	}
	return token, nil
}

func (m *SessionManager) emit(eventType, identityID, email, origin, reason string) {
	telemetry.EmitAsync(m.events, &telemetry.Event{
		Type:       eventType,
		IdentityID: identityID,
		Email:      email,
		Origin:     origin,
		Reason:     reason,
		CreatedAt:  m.now().UTC(),
	})
}
