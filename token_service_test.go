package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-token-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, c *clock) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(testConfig(), quietLogger{})
	require.NoError(t, err)
	if c != nil {
		ts.WithClock(c.Now)
	}
	return ts
}

func TestNewTokenService(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		ts, err := auth.NewTokenService(testConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, ts.TTL(auth.PurposeAccess))
		assert.Equal(t, 7*24*time.Hour, ts.TTL(auth.PurposeRefresh))
		assert.Equal(t, 30*time.Minute, ts.TTL(auth.PurposePasswordReset))
	})

	t.Run("reset ttl defaults", func(t *testing.T) {
		cfg := testConfig()
		cfg.ResetTokenTTL = 0
		ts, err := auth.NewTokenService(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultResetTokenTTL, ts.TTL(auth.PurposePasswordReset))
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := testConfig()
		cfg.RefreshTokenSecret = cfg.AccessTokenSecret
		ts, err := auth.NewTokenService(cfg, nil)
		require.Error(t, err)
		assert.Nil(t, ts)
		assert.True(t, auth.IsBadConfiguration(err))
	})
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	c := newClock()
	ts := newTestTokenService(t, c)
	accountID := uuid.NewString()

	pair, err := ts.IssueTokenPair(accountID)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access := ts.Verify(auth.PurposeAccess, pair.AccessToken)
	require.True(t, access.Valid(), "%v", access.Err)
	assert.Equal(t, accountID, access.Claims.UserID())
	assert.Equal(t, accountID, access.Claims.Subject)
	assert.Equal(t, auth.PurposeAccess, access.Claims.Purpose)
	assert.Equal(t, "auth-test", access.Claims.Issuer)
	assert.NotEmpty(t, access.Claims.ID)
	assert.Equal(t, c.Now().Add(5*time.Minute).Unix(), access.Claims.Expires().Unix())
	assert.Equal(t, c.Now().Unix(), access.Claims.IssuedAtTime().Unix())

	refresh := ts.Verify(auth.PurposeRefresh, pair.RefreshToken)
	require.True(t, refresh.Valid(), "%v", refresh.Err)
	assert.Equal(t, accountID, refresh.Claims.UserID())
	assert.Equal(t, c.Now().Add(7*24*time.Hour).Unix(), refresh.Claims.Expires().Unix())
}

func TestTokenService_UniqueTokens(t *testing.T) {
	ts := newTestTokenService(t, newClock())
	accountID := uuid.NewString()

	first, err := ts.IssueRefreshToken(accountID)
	require.NoError(t, err)
	second, err := ts.IssueRefreshToken(accountID)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenService_Expiry(t *testing.T) {
	c := newClock()
	ts := newTestTokenService(t, c)

	token, err := ts.IssueAccessToken(uuid.NewString())
	require.NoError(t, err)

	c.Advance(5*time.Minute - time.Second)
	assert.Equal(t, auth.VerificationValid, ts.Verify(auth.PurposeAccess, token).Status)
	assert.False(t, ts.IsExpired(auth.PurposeAccess, token))

	c.Advance(2 * time.Second)
	v := ts.Verify(auth.PurposeAccess, token)
	assert.Equal(t, auth.VerificationExpired, v.Status)
	assert.Nil(t, v.Claims)
	assert.ErrorIs(t, v.Err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(v.Err))
	assert.True(t, auth.IsInvalidToken(v.Err))
	assert.True(t, ts.IsExpired(auth.PurposeAccess, token))
	assert.Equal(t, "expired", v.Status.String())
}

func TestTokenService_PurposeIsolation(t *testing.T) {
	ts := newTestTokenService(t, newClock())
	accountID := uuid.NewString()

	pair, err := ts.IssueTokenPair(accountID)
	require.NoError(t, err)

	reset, _, err := ts.IssueCapabilityToken(accountID, auth.CapabilityTokenOptions{})
	require.NoError(t, err)

	tests := []struct {
		name    string
		purpose auth.TokenPurpose
		token   string
	}{
		{name: "refresh as access", purpose: auth.PurposeAccess, token: pair.RefreshToken},
		{name: "access as refresh", purpose: auth.PurposeRefresh, token: pair.AccessToken},
		{name: "reset as access", purpose: auth.PurposeAccess, token: reset},
		{name: "reset as refresh", purpose: auth.PurposeRefresh, token: reset},
		{name: "access as reset", purpose: auth.PurposePasswordReset, token: pair.AccessToken},
		{name: "unknown purpose", purpose: "impersonate", token: pair.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ts.Verify(tt.purpose, tt.token)
			assert.Equal(t, auth.VerificationInvalid, v.Status)
			assert.True(t, auth.IsInvalidToken(v.Err))
		})
	}
}

func TestTokenService_ResetSecretFallback(t *testing.T) {
	cfg := testConfig()
	cfg.ResetTokenSecret = ""

	ts, err := auth.NewTokenService(cfg, nil)
	require.NoError(t, err)

	accountID := uuid.NewString()
	reset, _, err := ts.IssueCapabilityToken(accountID, auth.CapabilityTokenOptions{})
	require.NoError(t, err)

	v := ts.Verify(auth.PurposePasswordReset, reset)
	require.True(t, v.Valid())

	// same secret as access tokens, the purpose claim still keeps them apart
	assert.False(t, ts.Verify(auth.PurposeAccess, reset).Valid())
}

func TestTokenService_RejectsForgedTokens(t *testing.T) {
	c := newClock()
	ts := newTestTokenService(t, c)
	accountID := uuid.NewString()

	claims := auth.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    "auth-test",
			ExpiresAt: jwt.NewNumericDate(c.Now().Add(time.Hour)),
		},
		UID:     accountID,
		Purpose: auth.PurposeAccess,
	}

	wrongSecret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("someone-else"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	noExpiry := claims
	noExpiry.ExpiresAt = nil
	withoutExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noExpiry).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	otherIssuer := claims
	otherIssuer.Issuer = "evil"
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, otherIssuer).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	valid, err := ts.IssueAccessToken(accountID)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tokens := map[string]string{
		"wrong secret": wrongSecret,
		"alg none":     unsigned,
		"other alg":    otherAlg,
		"missing exp":  withoutExp,
		"wrong issuer": wrongIssuer,
		"tampered":     tampered,
		"garbage":      "not.a.jwt",
		"empty":        "",
		"two segments": parts[0] + "." + parts[1],
	}

	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			v := ts.Verify(auth.PurposeAccess, token)
			assert.Equal(t, auth.VerificationInvalid, v.Status)
			assert.Nil(t, v.Claims)
			assert.True(t, auth.IsInvalidToken(v.Err))
			assert.True(t, ts.IsExpired(auth.PurposeAccess, token))
		})
	}
}

func TestTokenService_Decode(t *testing.T) {
	c := newClock()
	ts := newTestTokenService(t, c)
	accountID := uuid.NewString()

	token, err := ts.IssueAccessToken(accountID)
	require.NoError(t, err)

	c.Advance(time.Hour)

	claims, err := ts.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.UserID())

	_, err = ts.Decode("garbage")
	require.Error(t, err)
	assert.True(t, auth.IsMalformedError(err))
}

func TestTokenService_IssueCapabilityToken(t *testing.T) {
	c := newClock()
	ts := newTestTokenService(t, c)
	accountID := uuid.NewString()

	token, expiresAt, err := ts.IssueCapabilityToken(accountID, auth.CapabilityTokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(30*time.Minute), expiresAt)

	claims, err := ts.Validate(auth.PurposePasswordReset, token)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.UserID())

	_, expiresAt, err = ts.IssueCapabilityToken(accountID, auth.CapabilityTokenOptions{TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, c.Now().Add(time.Minute), expiresAt)

	_, _, err = ts.IssueCapabilityToken(accountID, auth.CapabilityTokenOptions{Purpose: "impersonate"})
	assert.Error(t, err)

	_, _, err = ts.IssueCapabilityToken("", auth.CapabilityTokenOptions{})
	assert.Error(t, err)
}

func TestTokenService_Audience(t *testing.T) {
	cfg := testConfig()
	cfg.Audience = []string{"web"}

	ts, err := auth.NewTokenService(cfg, nil)
	require.NoError(t, err)

	token, err := ts.IssueAccessToken(uuid.NewString())
	require.NoError(t, err)

	claims, err := ts.Validate(auth.PurposeAccess, token)
	require.NoError(t, err)
	assert.Equal(t, jwt.ClaimStrings{"web"}, claims.Audience)

	cfg.Audience = []string{"mobile"}
	other, err := auth.NewTokenService(cfg, nil)
	require.NoError(t, err)

	_, err = other.Validate(auth.PurposeAccess, token)
	assert.True(t, auth.IsInvalidToken(err))
}

func TestTokenValidators(t *testing.T) {
	oldCfg := testConfig()
	oldCfg.AccessTokenSecret = "old-access-secret"
	previous, err := auth.NewTokenService(oldCfg, nil)
	require.NoError(t, err)

	current := newTestTokenService(t, nil)
	accountID := uuid.NewString()

	oldToken, err := previous.IssueAccessToken(accountID)
	require.NoError(t, err)
	newToken, err := current.IssueAccessToken(accountID)
	require.NoError(t, err)

	single := auth.AccessTokenValidator(current)
	_, err = single.Validate(oldToken)
	assert.Error(t, err)

	rotating := auth.NewMultiTokenValidator(auth.AccessTokenValidator(current), nil, auth.AccessTokenValidator(previous))

	claims, err := rotating.Validate(oldToken)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.UserID())

	claims, err = rotating.Validate(newToken)
	require.NoError(t, err)
	assert.Equal(t, accountID, claims.UserID())

	_, err = rotating.Validate("garbage")
	assert.True(t, auth.IsMalformedError(err))

	_, err = auth.NewMultiTokenValidator().Validate(newToken)
	assert.Error(t, err)
}
