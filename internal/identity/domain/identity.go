package domain

import (
	"strings"
	"time"
)

// Role is the enumerated authorization role of an identity.
type Role int

const (
	RoleUser  Role = 0
	RoleAdmin Role = 1
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// String returns the policy name of the role ("user" or "admin").
func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "user"
}

// Identity is a user record: email is the natural key, sessions are owned exclusively by it.
// JSON field names are the stored document layout.
type Identity struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"` // bcrypt hash
	PhoneNo   string    `json:"phoneNo,omitempty"`
	Role      Role      `json:"role"`
	CreatedOn time.Time `json:"createdOn"`
	UpdatedOn time.Time `json:"updatedOn"`
	Sessions  []Session `json:"sessions,omitempty"`
}

// Stored field names used in storage criteria and updates.
const (
	FieldEmail     = "email"
	FieldName      = "name"
	FieldPhoneNo   = "phoneNo"
	FieldRole      = "role"
	FieldUpdatedOn = "updatedOn"
	FieldSessions  = "sessions"

	SessionFieldAccessToken   = "accessToken"
	SessionFieldOriginAddress = "originAddress"
	SessionFieldCreatedAt     = "createdAt"
	SessionFieldExpiresAt     = "expiresAt"
	SessionFieldRefreshToken  = "refreshToken"
)

// Session is one authenticated origin of an identity. Times are epoch milliseconds.
type Session struct {
	AccessToken   string        `json:"accessToken"`
	OriginAddress string        `json:"originAddress"`
	CreatedAt     int64         `json:"createdAt"`
	ExpiresAt     int64         `json:"expiresAt"`
	RefreshToken  *RefreshToken `json:"refreshToken,omitempty"`
}

// RefreshToken is minted lazily on the first expiry check after the session expired.
type RefreshToken struct {
	Token     string `json:"token"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// SessionByOrigin returns the session for origin, or nil.
func (i *Identity) SessionByOrigin(origin string) *Session {
	for k := range i.Sessions {
		if i.Sessions[k].OriginAddress == origin {
			return &i.Sessions[k]
		}
	}
	return nil
}

// SessionByAccessToken returns the session whose access token equals token, or nil.
func (i *Identity) SessionByAccessToken(token string) *Session {
	for k := range i.Sessions {
		if i.Sessions[k].AccessToken == token {
			return &i.Sessions[k]
		}
	}
	return nil
}

// NormalizeEmail lower-cases and trims an email so lookups by the natural key are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const canonicalLoopback = "127.0.0.1"

// NormalizeOrigin maps IPv6 loopback forms onto the IPv4 literal and strips an IPv4-mapped
// IPv6 prefix, so one device is one session slot whichever stack it connected over.
func NormalizeOrigin(addr string) string {
	addr = strings.TrimSpace(addr)
	switch addr {
	case "::1", "[::1]", "0:0:0:0:0:0:0:1", "::ffff:127.0.0.1":
		return canonicalLoopback
	}
	if rest, ok := strings.CutPrefix(addr, "::ffff:"); ok && strings.Count(rest, ".") == 3 {
		return rest
	}
	return addr
}
