package google

import "github.com/goliatone/go-token-auth/social"

// userInfo decodes both the userinfo response and the id_token claims.
type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (u *userInfo) profile() *social.SocialProfile {
	return &social.SocialProfile{
		ProviderUserID: u.Sub,
		Provider:       "google",
		Email:          u.Email,
		EmailVerified:  u.EmailVerified,
		Name:           u.Name,
		FirstName:      u.GivenName,
		LastName:       u.FamilyName,
	}
}
