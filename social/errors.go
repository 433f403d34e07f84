package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "social_provider_not_found"
	TextCodeInvalidState      = "social_invalid_state"
	TextCodeStateExpired      = "social_state_expired"
	TextCodeTokenExchangeFail = "social_token_exchange_failed"
	TextCodeUserInfoFail      = "social_user_info_failed"
	TextCodeEmailNotVerified  = "social_email_not_verified"
)

var (
	ErrProviderNotFound    = socialError("social provider not found", errors.CategoryNotFound, TextCodeProviderNotFound, errors.CodeNotFound)
	ErrInvalidState        = socialError("invalid oauth state", errors.CategoryBadInput, TextCodeInvalidState, errors.CodeBadRequest)
	ErrStateExpired        = socialError("oauth state expired", errors.CategoryBadInput, TextCodeStateExpired, errors.CodeBadRequest)
	ErrTokenExchangeFailed = socialError("token exchange failed", errors.CategoryAuth, TextCodeTokenExchangeFail, errors.CodeUnauthorized)
	ErrUserInfoFailed      = socialError("failed to fetch user info", errors.CategoryAuth, TextCodeUserInfoFail, errors.CodeUnauthorized)
	// ErrEmailNotVerified rejects callbacks when Config.RequireEmailVerified is set
	ErrEmailNotVerified = socialError("email not verified", errors.CategoryAuth, TextCodeEmailNotVerified, errors.CodeForbidden)
)

func socialError(message string, category errors.Category, textCode string, code int) *errors.Error {
	return errors.New(message, category).WithTextCode(textCode).WithCode(code)
}

// HasTextCode reports whether err carries the given social text code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	return errors.As(err, &richErr) && richErr.TextCode == code
}
