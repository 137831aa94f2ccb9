// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage adapter names accepted by DAO.
const (
	DAODocument = "document"
	DAOFlat     = "flat"
)

// Flat-store backends accepted by FLAT_BACKEND.
const (
	FlatBackendFirebase = "firebase"
	FlatBackendMemory   = "memory"
)

// AuthVersionLegacy disables transport obfuscation of the access token.
const AuthVersionLegacy = "v1"

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// DAO selects the storage adapter for the process lifetime: "document" or "flat".
	DAO string `mapstructure:"DAO"`
	// DatabaseURL is the Postgres DSN; required when DAO is document.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// FlatBackend is "firebase" (Realtime Database) or "memory" (single process, development only).
	FlatBackend string `mapstructure:"FLAT_BACKEND"`
	// FirebaseDatabaseURL is the Realtime Database URL; required for the firebase flat backend.
	FirebaseDatabaseURL string `mapstructure:"FIREBASE_DATABASE_URL"`
	// FirebaseCredentialsFile is a service account JSON path; empty uses application default credentials.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// JWTSecretKey is the HMAC secret for access and refresh tokens.
	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	// AESSecretKey is the secret the transport key is derived from. Not needed when AuthVersion is v1.
	AESSecretKey string `mapstructure:"AES_SECRET_KEY"`
	// AuthVersion "v1" passes tokens through the auth header unobfuscated; "v2" encrypts them.
	AuthVersion string `mapstructure:"AUTH_VERSION"`
	// AccessTokenExpiryHours is the session lifetime in hours.
	AccessTokenExpiryHours int `mapstructure:"ACCESS_TOKEN_EXPIRY_TIME"`
	// RefreshTokenExpiryHours is the refresh token lifetime in hours; must exceed the access lifetime.
	RefreshTokenExpiryHours int `mapstructure:"REFRESH_TOKEN_EXPIRY_TIME"`
	// MaxActiveSessions is the number of concurrent sessions (distinct origins) per identity.
	MaxActiveSessions int `mapstructure:"MAXIMUM_ACTIVE_SESSION"`
	// TokenHeaderKey is the metadata key carrying the obfuscated access token.
	TokenHeaderKey string `mapstructure:"TOKEN_HEADER_KEY"`
	// TrustProxyHeaders takes the client address from x-forwarded-for / x-real-ip instead of the
	// connection peer. Enable only behind a proxy that sets these headers itself.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTLPEndpoint is the collector gRPC endpoint (host:port). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("DAO", DAODocument)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("FLAT_BACKEND", FlatBackendFirebase)
	v.SetDefault("FIREBASE_DATABASE_URL", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("AES_SECRET_KEY", "")
	v.SetDefault("AUTH_VERSION", "v2")
	v.SetDefault("ACCESS_TOKEN_EXPIRY_TIME", 24)
	v.SetDefault("REFRESH_TOKEN_EXPIRY_TIME", 168)
	v.SetDefault("MAXIMUM_ACTIVE_SESSION", 3)
	v.SetDefault("TOKEN_HEADER_KEY", "x-access-token")
	v.SetDefault("TRUST_PROXY_HEADERS", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "user-session-service")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DAO = strings.ToLower(strings.TrimSpace(cfg.DAO))
	cfg.FlatBackend = strings.ToLower(strings.TrimSpace(cfg.FlatBackend))
	cfg.AuthVersion = strings.ToLower(strings.TrimSpace(cfg.AuthVersion))
	cfg.TokenHeaderKey = strings.ToLower(strings.TrimSpace(cfg.TokenHeaderKey))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	switch c.DAO {
	case DAODocument:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when DAO=document")
		}
	case DAOFlat:
		switch c.FlatBackend {
		case FlatBackendFirebase:
			if c.FirebaseDatabaseURL == "" {
				return errors.New("config: FIREBASE_DATABASE_URL must be set when FLAT_BACKEND=firebase")
			}
		case FlatBackendMemory:
			if c.Env == "production" {
				return errors.New("config: FLAT_BACKEND=memory must not be used when APP_ENV=production")
			}
		default:
			return fmt.Errorf("config: FLAT_BACKEND must be firebase or memory, got %q", c.FlatBackend)
		}
	default:
		return fmt.Errorf("config: DAO must be document or flat, got %q", c.DAO)
	}

	if c.JWTSecretKey == "" {
		return errors.New("config: JWT_SECRET_KEY must be set")
	}
	switch c.AuthVersion {
	case AuthVersionLegacy:
	case "v2":
		if c.AESSecretKey == "" {
			return errors.New("config: AES_SECRET_KEY must be set unless AUTH_VERSION=v1")
		}
	default:
		return fmt.Errorf("config: AUTH_VERSION must be v1 or v2, got %q", c.AuthVersion)
	}

	if c.AccessTokenExpiryHours <= 0 {
		return errors.New("config: ACCESS_TOKEN_EXPIRY_TIME must be a positive number of hours")
	}
	if c.RefreshTokenExpiryHours <= c.AccessTokenExpiryHours {
		return errors.New("config: REFRESH_TOKEN_EXPIRY_TIME must be greater than ACCESS_TOKEN_EXPIRY_TIME")
	}
	if c.MaxActiveSessions < 1 {
		return errors.New("config: MAXIMUM_ACTIVE_SESSION must be at least 1")
	}
	if c.TokenHeaderKey == "" {
		return errors.New("config: TOKEN_HEADER_KEY must be set")
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

// AccessTTL returns the access (session) lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpiryHours) * time.Hour
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiryHours) * time.Hour
}

// LegacyTransport reports whether the access token travels unobfuscated (AUTH_VERSION=v1).
func (c *Config) LegacyTransport() bool {
	return c != nil && c.AuthVersion == AuthVersionLegacy
}
