package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the authenticated view of a verified access token
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetExpirationDate() *time.Time
	GetData() map[string]any
}

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	TokenID        string         `json:"token_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpirationDate() *time.Time {
	return s.ExpirationDate
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// IsExpired reports whether the session expiry is before t
func (s *SessionObject) IsExpired(t time.Time) bool {
	if s.ExpirationDate == nil {
		return true
	}
	return !t.Before(*s.ExpirationDate)
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s jti=%s aud=%v iss=%s iat=%s",
		s.UserID,
		s.TokenID,
		s.Audience,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromClaims creates a SessionObject from verified access claims
func sessionFromClaims(claims *TokenClaims) (*SessionObject, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, ErrTokenMalformed
	}

	var audience []string
	for _, aud := range claims.Audience {
		audience = append(audience, aud)
	}

	issuedAt := claims.IssuedAtTime()
	expiresAt := claims.Expires()

	issuer := claims.Issuer
	if issuer == "" {
		issuer = claims.Subject
	}

	return &SessionObject{
		UserID:         claims.UserID(),
		TokenID:        claims.ID,
		Audience:       audience,
		Issuer:         issuer,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
		Data: map[string]any{
			"purpose": claims.Purpose,
		},
	}, nil
}
