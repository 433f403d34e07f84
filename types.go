package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetResetTokenSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetPasswordHashCost() int
	GetIssuer() string
	GetAudience() []string
}

// AccountStore is the persistence contract for accounts
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, record *Account) (*Account, error)
	// Update writes the given columns of record, identified by record.ID.
	Update(ctx context.Context, record *Account, columns ...string) (*Account, error)
}

// IdentityProviderStore resolves provider records by name
type IdentityProviderStore interface {
	FindByName(ctx context.Context, name string) (*IdentityProvider, error)
	UpsertByName(ctx context.Context, name string) (*IdentityProvider, error)
}

// SessionStore persists the single active refresh token of an account.
// A nil token clears the session.
type SessionStore interface {
	GetRefreshToken(ctx context.Context, accountID string) (*string, error)
	SetRefreshToken(ctx context.Context, accountID string, token *string) error
}

// ResetNotifier delivers password reset tokens to account owners
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error
}

// PasswordAuthenticator hashes and verifies secrets
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
