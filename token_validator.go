package auth

// TokenValidator validates access tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(raw string) (*TokenClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(raw string) (*TokenClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(raw string) (*TokenClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(raw)
}

// AccessTokenValidator returns a validator that only accepts access tokens
// signed by ts.
func AccessTokenValidator(ts *TokenService) TokenValidator {
	return TokenValidatorFunc(func(raw string) (*TokenClaims, error) {
		if ts == nil {
			return nil, ErrTokenMalformed
		}
		return ts.Validate(PurposeAccess, raw)
	})
}

// MultiTokenValidator tries validators in order until one succeeds.
// Malformed errors move on to the next validator, so a service can keep
// accepting tokens signed with a previous secret during rotation.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(raw string) (*TokenClaims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(raw)
		if err == nil {
			return claims, nil
		}
		if IsMalformedError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
