package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature is returned when a token is malformed, tampered with, or signed with another secret.
	ErrInvalidSignature = errors.New("security: invalid token signature")
	// ErrExpired is returned when a token carries an exp claim that has passed.
	ErrExpired = errors.New("security: token expired")
)

// Claims is the signed payload of access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID string `json:"id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email"`
}

// TokenCodec signs and verifies HS256 tokens with a process-wide secret.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec returns a TokenCodec for secret. secret must not be empty.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("security: signing secret is empty")
	}
	return &TokenCodec{secret: []byte(secret), now: time.Now}, nil
}

// Sign returns a compact signed token for claims. A positive ttl sets the exp claim;
// ttl <= 0 issues an unbounded token. Every token gets a random jti so two tokens signed
// within the same second for the same identity differ.
func (c *TokenCodec) Sign(claims Claims, ttl time.Duration) (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	claims.ID = jti
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = nil
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secret)
}

// Verify parses token and checks its signature and, when present, its exp claim.
// Returns ErrExpired for a passed exp and ErrInvalidSignature for everything else.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
