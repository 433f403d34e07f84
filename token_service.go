package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// VerificationStatus tags the outcome of TokenService.Verify
type VerificationStatus int

const (
	VerificationInvalid VerificationStatus = iota
	VerificationValid
	VerificationExpired
)

func (s VerificationStatus) String() string {
	switch s {
	case VerificationValid:
		return "valid"
	case VerificationExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Verification is the tagged result of verifying a token.
// Claims is only set when Status is VerificationValid.
type Verification struct {
	Status VerificationStatus
	Claims *TokenClaims
	Err    error
}

// Valid reports a verified token
func (v Verification) Valid() bool {
	return v.Status == VerificationValid
}

// TokenService signs and verifies access, refresh and capability tokens.
// Each purpose has its own secret and TTL.
type TokenService struct {
	secrets  map[TokenPurpose][]byte
	ttls     map[TokenPurpose]time.Duration
	issuer   string
	audience jwt.ClaimStrings
	logger   Logger
	now      func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, logger Logger) (*TokenService, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	resetSecret := cfg.GetResetTokenSecret()
	if resetSecret == "" {
		resetSecret = cfg.GetAccessTokenSecret()
	}

	resetTTL := cfg.GetResetTokenTTL()
	if resetTTL == 0 {
		resetTTL = DefaultResetTokenTTL
	}

	var aud jwt.ClaimStrings
	if a := cfg.GetAudience(); len(a) > 0 {
		aud = make(jwt.ClaimStrings, len(a))
		copy(aud, a)
	}

	return &TokenService{
		secrets: map[TokenPurpose][]byte{
			PurposeAccess:        []byte(cfg.GetAccessTokenSecret()),
			PurposeRefresh:       []byte(cfg.GetRefreshTokenSecret()),
			PurposePasswordReset: []byte(resetSecret),
		},
		ttls: map[TokenPurpose]time.Duration{
			PurposeAccess:        cfg.GetAccessTokenTTL(),
			PurposeRefresh:       cfg.GetRefreshTokenTTL(),
			PurposePasswordReset: resetTTL,
		},
		issuer:   cfg.GetIssuer(),
		audience: aud,
		logger:   normalizeLogger(logger),
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source used for issuing and verifying
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// WithLogger overrides the logger
func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	ts.logger = normalizeLogger(logger)
	return ts
}

// TTL returns the configured lifetime for purpose
func (ts *TokenService) TTL(purpose TokenPurpose) time.Duration {
	return ts.ttls[purpose]
}

// IssueAccessToken signs a short lived access token for accountID
func (ts *TokenService) IssueAccessToken(accountID string) (string, error) {
	token, _, err := ts.sign(PurposeAccess, accountID, ts.ttls[PurposeAccess], ts.now())
	return token, err
}

// IssueRefreshToken signs a refresh token for accountID
func (ts *TokenService) IssueRefreshToken(accountID string) (string, error) {
	token, _, err := ts.sign(PurposeRefresh, accountID, ts.ttls[PurposeRefresh], ts.now())
	return token, err
}

// IssueTokenPair mints an access and refresh token for accountID
func (ts *TokenService) IssueTokenPair(accountID string) (*TokenPair, error) {
	access, err := ts.IssueAccessToken(accountID)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.IssueRefreshToken(accountID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify validates signature, expiry and purpose of raw
func (ts *TokenService) Verify(purpose TokenPurpose, raw string) Verification {
	secret, ok := ts.secrets[purpose]
	if !ok {
		return Verification{Status: VerificationInvalid, Err: ErrInvalidToken}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verification{Status: VerificationExpired, Err: ErrTokenExpired}
		}
		ts.logger.Debug("TokenService verify failed", "purpose", purpose, "error", err)
		return Verification{
			Status: VerificationInvalid,
			Err: errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode).
				WithCode(ErrTokenMalformed.Code),
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return Verification{Status: VerificationInvalid, Err: ErrTokenMalformed}
	}

	if claims.Purpose != purpose {
		ts.logger.Warn("TokenService verify purpose mismatch", "expected", purpose, "got", claims.Purpose)
		return Verification{Status: VerificationInvalid, Err: ErrInvalidToken}
	}

	if claims.UserID() == "" {
		return Verification{Status: VerificationInvalid, Err: ErrTokenMalformed}
	}

	return Verification{Status: VerificationValid, Claims: claims}
}

// Validate returns the claims of a valid token or the verification error
func (ts *TokenService) Validate(purpose TokenPurpose, raw string) (*TokenClaims, error) {
	v := ts.Verify(purpose, raw)
	if !v.Valid() {
		return nil, v.Err
	}
	return v.Claims, nil
}

// IsExpired is true when raw fails verification for any reason
func (ts *TokenService) IsExpired(purpose TokenPurpose, raw string) bool {
	return !ts.Verify(purpose, raw).Valid()
}

// Decode extracts the claims of raw without checking signature or expiry.
// Only call it after the token was gated by Verify or IsExpired.
func (ts *TokenService) Decode(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}
	return claims, nil
}

func (ts *TokenService) sign(purpose TokenPurpose, accountID string, ttl time.Duration, issuedAt time.Time) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, errors.New("account id is required to sign a token", errors.CategoryBadInput)
	}

	secret, ok := ts.secrets[purpose]
	if !ok || len(secret) == 0 {
		return "", time.Time{}, errors.New("no signing secret for token purpose", errors.CategoryInternal).
			WithMetadata(map[string]any{"purpose": purpose})
	}

	if ttl <= 0 {
		return "", time.Time{}, errors.New("token TTL must be positive", errors.CategoryBadInput)
	}

	expiresAt := issuedAt.Add(ttl)

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   accountID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:     accountID,
		Purpose: purpose,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}
