package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var transportKeyInfo = []byte("user-session-service/transport/v2")

// TransportCipher obscures access tokens while they travel in the auth header.
// It is unrelated to signing: a token is signed first, then obfuscated for transport.
//
// In legacy mode both directions return their input unchanged.
type TransportCipher struct {
	aead   cipher.AEAD
	legacy bool
}

// NewTransportCipher derives an AES-256-GCM key from secret with HKDF-SHA256.
// secret is ignored (and may be empty) when legacy is true.
func NewTransportCipher(secret string, legacy bool) (*TransportCipher, error) {
	if legacy {
		return &TransportCipher{legacy: true}, nil
	}
	if secret == "" {
		return nil, errors.New("security: transport secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, transportKeyInfo), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TransportCipher{aead: aead}, nil
}

// Legacy reports whether obfuscation is disabled.
func (c *TransportCipher) Legacy() bool { return c.legacy }

// Encrypt returns base64url(nonce || ciphertext) of plain.
func (c *TransportCipher) Encrypt(plain string) (string, error) {
	if c.legacy {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Undecodable or unauthenticated input fails with ErrInvalidSignature.
func (c *TransportCipher) Decrypt(encoded string) (string, error) {
	if c.legacy {
		return encoded, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: transport encoding", ErrInvalidSignature)
	}
	n := c.aead.NonceSize()
	if len(raw) < n+c.aead.Overhead() {
		return "", fmt.Errorf("%w: transport payload too short", ErrInvalidSignature)
	}
	plain, err := c.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: transport payload", ErrInvalidSignature)
	}
	return string(plain), nil
}
