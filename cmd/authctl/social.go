package main

import (
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
	"github.com/goliatone/go-token-auth/social"
)

var errSocialDisabled = goerrors.New("social login is not configured, set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET", goerrors.CategoryInternal).
	WithTextCode(auth.TextCodeBadConfiguration).
	WithCode(goerrors.CodeInternal)

func socialRedirect(url string) []social.BeginAuthOption {
	if url == "" {
		return nil
	}
	return []social.BeginAuthOption{social.WithRedirectURL(url)}
}
