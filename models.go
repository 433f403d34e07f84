package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the authenticated identity.
// PasswordHash is nil for provider-only accounts.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	PasswordHash  *string    `bun:"password_hash" json:"-"`
	ProviderID    *uuid.UUID `bun:"identity_provider_id,type:uuid" json:"identity_provider_id,omitempty"`
	ProviderToken *string    `bun:"provider_token" json:"-"`
	RefreshToken  *string    `bun:"refresh_token" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether the account holds a local credential
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != nil && *a.PasswordHash != ""
}

// IsLinked reports whether the account was created through an identity provider
func (a *Account) IsLinked() bool {
	return a != nil && a.ProviderID != nil && *a.ProviderID != uuid.Nil
}

// Account columns used by partial updates
const (
	ColumnPasswordHash  = "password_hash"
	ColumnRefreshToken  = "refresh_token"
	ColumnProviderToken = "provider_token"
	ColumnUpdatedAt     = "updated_at"
)

// IdentityProvider is the canonical record of an external login provider
type IdentityProvider struct {
	bun.BaseModel `bun:"table:identity_providers,alias:idp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// TokenPair is returned by every successful login or refresh
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// OAuthProfile is the identity asserted by an external provider.
// ProviderToken must be stable across logins for the same person.
type OAuthProfile struct {
	Provider      string `json:"provider"`
	ProviderToken string `json:"provider_token"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
}

// PasswordResetNotification is handed to a ResetNotifier
type PasswordResetNotification struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func stringPtr(s string) *string {
	return &s
}
