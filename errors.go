package auth

import (
	"database/sql"
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeProviderNotFound   = "IDENTITY_PROVIDER_NOT_FOUND"
	TextCodeAccountExists      = "ACCOUNT_EXISTS"
	TextCodeInvalidCreds       = "INVALID_CREDENTIAL"
	TextCodeConflictIdentity   = "CONFLICTING_IDENTITY"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeBadConfiguration   = "BAD_CONFIGURATION"
	TextCodeInvalidInput       = "INVALID_INPUT"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	TextCodeUnsupportedProvide = "UNSUPPORTED_PROVIDER"
)

// ErrAccountNotFound is returned when no account matches an email or id
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrIdentityProviderNotFound is returned when a provider record is absent
var ErrIdentityProviderNotFound = errors.New("identity provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrAccountExists is returned when registering an email that is taken
var ErrAccountExists = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAccountExists).
	WithCode(errors.CodeConflict)

// ErrInvalidCredential is returned when a secret does not match
var ErrInvalidCredential = errors.New("invalid password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeBadRequest)

// ErrConflictingIdentity is returned when a provider login collides with an
// account that is not linked to that provider assertion
var ErrConflictingIdentity = errors.New(
	"an account already exists with this email that is not linked to this provider identity",
	errors.CategoryConflict,
).
	WithTextCode(TextCodeConflictIdentity).
	WithCode(errors.CodeBadRequest)

// ErrInvalidToken is returned for refresh or reset tokens that can not be used
var ErrInvalidToken = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeBadRequest)

// ErrTokenExpired is returned when a token signature is valid but it expired
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenMalformed is returned for forged, tampered or unparsable tokens
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeBadRequest)

// ErrBadConfiguration is returned when required settings are missing or invalid
var ErrBadConfiguration = errors.New("invalid auth configuration", errors.CategoryInternal).
	WithTextCode(TextCodeBadConfiguration).
	WithCode(errors.CodeInternal)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrPasswordTooLong is returned when a password exceeds the bcrypt input limit
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes", errors.CategoryValidation).
	WithTextCode(TextCodePasswordTooLong).
	WithCode(errors.CodeBadRequest)

// ErrUnsupportedProvider is returned for provider names we do not accept
var ErrUnsupportedProvider = errors.New("unsupported identity provider", errors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedProvide).
	WithCode(errors.CodeBadRequest)

// IsAccountNotFound reports whether err is an account lookup miss
func IsAccountNotFound(err error) bool {
	return hasTextCode(err, TextCodeAccountNotFound)
}

// IsInvalidCredential reports whether err is a secret mismatch
func IsInvalidCredential(err error) bool {
	return hasTextCode(err, TextCodeInvalidCreds)
}

// IsConflictingIdentity reports whether err is a provider login collision
func IsConflictingIdentity(err error) bool {
	return hasTextCode(err, TextCodeConflictIdentity)
}

// IsInvalidToken matches invalid, expired and malformed token errors
func IsInvalidToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken) ||
		IsTokenExpiredError(err) ||
		IsMalformedError(err)
}

// IsBadConfiguration reports whether err is a startup configuration error
func IsBadConfiguration(err error) bool {
	return hasTextCode(err, TextCodeBadConfiguration)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError reports tokens that failed to parse or verify
func IsMalformedError(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed)
}

// HTTPStatus maps an error to the status code an HTTP layer should return
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if richErr.Code > 0 {
			return richErr.Code
		}
		switch richErr.Category {
		case errors.CategoryNotFound:
			return http.StatusNotFound
		case errors.CategoryValidation, errors.CategoryBadInput:
			return http.StatusBadRequest
		case errors.CategoryConflict:
			return http.StatusConflict
		case errors.CategoryAuth:
			return http.StatusUnauthorized
		}
	}

	return http.StatusInternalServerError
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

func isRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	if IsAccountNotFound(err) || hasTextCode(err, TextCodeProviderNotFound) {
		return true
	}
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func validationError(err error, message string) error {
	return errors.Wrap(err, errors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidInput).
		WithCode(errors.CodeBadRequest)
}
