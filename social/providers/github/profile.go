package github

import (
	"strconv"

	"github.com/goliatone/go-token-auth/social"
)

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// profile uses the login as display name when the account has none.
func (u *githubUser) profile(email string, verified bool) *social.SocialProfile {
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &social.SocialProfile{
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Provider:       "github",
		Email:          email,
		EmailVerified:  verified,
		Name:           name,
	}
}
