package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a token to the single operation it may be used for
type TokenPurpose = string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeRefresh       TokenPurpose = "refresh"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// TokenClaims is the payload of every token minted by TokenService
type TokenClaims struct {
	jwt.RegisteredClaims
	UID     string `json:"userId,omitempty"`
	Purpose string `json:"pur,omitempty"`
}

// UserID returns the account id, falling back to the subject
func (c *TokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c != nil && c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAtTime returns the issued at time
func (c *TokenClaims) IssuedAtTime() time.Time {
	if c != nil && c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

func isKnownPurpose(p string) bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposePasswordReset:
		return true
	}
	return false
}
