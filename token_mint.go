package auth

import (
	"time"

	"github.com/goliatone/go-errors"
)

// CapabilityTokenOptions controls how IssueCapabilityToken mints one-off tokens.
type CapabilityTokenOptions struct {
	// Purpose defaults to PurposePasswordReset.
	Purpose TokenPurpose
	// TTL overrides the purpose default. Zero uses the configured TTL.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses the service clock.
	IssuedAt time.Time
}

// IssueCapabilityToken mints a short lived token that grants a single action
// to whoever holds it. It returns the token and its expiry.
func (ts *TokenService) IssueCapabilityToken(accountID string, opts CapabilityTokenOptions) (string, time.Time, error) {
	purpose := opts.Purpose
	if purpose == "" {
		purpose = PurposePasswordReset
	}

	if !isKnownPurpose(purpose) {
		return "", time.Time{}, errors.New("unknown token purpose", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": purpose})
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = ts.ttls[purpose]
	}

	if ttl < 0 {
		return "", time.Time{}, errors.New("token TTL must be non-negative", errors.CategoryBadInput)
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = ts.now()
	}

	return ts.sign(purpose, accountID, ttl, issuedAt)
}
