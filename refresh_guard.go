package auth

import (
	"context"
	"crypto/subtle"
)

// RefreshGuard authenticates the holder of the currently stored refresh token
type RefreshGuard struct {
	tokens   *TokenService
	sessions SessionStore
	logger   Logger
}

// NewRefreshGuard creates a guard over tokens and sessions
func NewRefreshGuard(tokens *TokenService, sessions SessionStore) *RefreshGuard {
	return &RefreshGuard{
		tokens:   tokens,
		sessions: sessions,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the guard.
func (g *RefreshGuard) WithLogger(logger Logger) *RefreshGuard {
	g.logger = normalizeLogger(logger)
	return g
}

// Authenticate returns the account id bound to raw. The token must verify
// with the refresh secret and equal the one stored for the account.
func (g *RefreshGuard) Authenticate(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}

	v := g.tokens.Verify(PurposeRefresh, raw)
	switch v.Status {
	case VerificationExpired:
		return "", ErrTokenExpired
	case VerificationInvalid:
		return "", v.Err
	}

	accountID := v.Claims.UserID()

	stored, err := g.sessions.GetRefreshToken(ctx, accountID)
	if err != nil {
		if isRecordNotFound(err) {
			g.logger.Warn("RefreshGuard account not found", "account_id", accountID)
			return "", ErrInvalidToken
		}
		return "", err
	}

	if stored == nil || *stored == "" {
		g.logger.Debug("RefreshGuard no active session", "account_id", accountID)
		return "", ErrInvalidToken
	}

	if subtle.ConstantTimeCompare([]byte(*stored), []byte(raw)) != 1 {
		g.logger.Warn("RefreshGuard token does not match stored session", "account_id", accountID)
		return "", ErrInvalidToken
	}

	return accountID, nil
}
