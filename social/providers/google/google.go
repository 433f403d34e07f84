package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/goliatone/go-token-auth/social"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	// Issuer is the issuer of Google ID tokens.
	Issuer             = "https://accounts.google.com"
	defaultJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Config holds Google OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// Endpoint overrides, mostly for tests.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client

	// Verifier checks the id_token returned by the token endpoint.
	// Defaults to a verifier backed by Google's published keys.
	Verifier *oidc.IDTokenVerifier
}

// DefaultScopes returns the default Google scopes.
func DefaultScopes() []string {
	return []string{oidc.ScopeOpenID, "email", "profile"}
}

// Provider implements social.Provider for Google.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	verifier    *oidc.IDTokenVerifier
}

var _ social.Provider = (*Provider)(nil)

// New creates a new Google provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}

	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	verifier := cfg.Verifier
	if verifier == nil {
		ctx := oidc.ClientContext(context.Background(), client)
		verifier = oidc.NewVerifier(Issuer, oidc.NewRemoteKeySet(ctx, defaultJWKSURL), &oidc.Config{
			ClientID: cfg.ClientID,
		})
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  client,
		verifier:    verifier,
	}
}

// Name implements social.Provider.
func (p *Provider) Name() string {
	return "google"
}

// AuthCodeURL implements social.Provider.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.oauth.Scopes, opts...)

	oc := *p.oauth
	if len(cfg.Scopes) > 0 {
		oc.Scopes = cfg.Scopes
	}

	params := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params = append(params,
			oauth2.SetAuthURLParam("code_challenge", cfg.CodeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", method),
		)
	}
	if cfg.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", cfg.Prompt))
	}

	return oc.AuthCodeURL(state, params...)
}

// Exchange implements social.Provider.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	cfg := social.ApplyExchangeOptions(opts...)

	var params []oauth2.AuthCodeOption
	if cfg.CodeVerifier != "" {
		params = append(params, oauth2.VerifierOption(cfg.CodeVerifier))
	}

	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, params...)
	if err != nil {
		return nil, social.NewProviderError("google", "exchange", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	scope, _ := tok.Extra("scope").(string)

	return &social.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       social.SplitScopes(scope),
	}, nil
}

// UserInfo implements social.Provider. A returned id_token is verified
// and used as the source of the profile, the userinfo endpoint is used
// otherwise.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	if token == nil {
		return nil, &social.ProviderError{Provider: "google", Operation: "user_info", Description: "missing token"}
	}

	if token.IDToken != "" {
		return p.profileFromIDToken(ctx, token.IDToken)
	}

	return p.fetchUserInfo(ctx, token)
}

func (p *Provider) profileFromIDToken(ctx context.Context, raw string) (*social.SocialProfile, error) {
	idToken, err := p.verifier.Verify(p.clientContext(ctx), raw)
	if err != nil {
		return nil, &social.ProviderError{
			Provider:    "google",
			Operation:   "verify_id_token",
			Code:        "invalid_id_token",
			Description: err.Error(),
			Err:         err,
		}
	}

	var info userInfo
	if err := idToken.Claims(&info); err != nil {
		return nil, social.NewProviderError("google", "verify_id_token", err)
	}

	if info.Sub == "" {
		info.Sub = idToken.Subject
	}

	return info.profile(), nil
}

func (p *Provider) fetchUserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	ctx = p.clientContext(ctx)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, social.NewProviderError("google", "user_info", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, social.NewProviderError("google", "user_info", err)
	}

	if resp.StatusCode != http.StatusOK {
		code, description := parseGoogleError(body)
		return nil, &social.ProviderError{
			Provider:    "google",
			Operation:   "user_info",
			Status:      resp.StatusCode,
			Code:        code,
			Description: description,
		}
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &social.ProviderError{
			Provider:    "google",
			Operation:   "user_info",
			Status:      resp.StatusCode,
			Code:        "invalid_response",
			Description: "failed to decode userinfo response",
			Err:         err,
		}
	}

	return info.profile(), nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

type googleErrorResponse struct {
	Error string `json:"error"`
	Desc  string `json:"error_description"`
}

type googleAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func parseGoogleError(body []byte) (string, string) {
	var plain googleErrorResponse
	if err := json.Unmarshal(body, &plain); err == nil && (plain.Error != "" || plain.Desc != "") {
		return plain.Error, plain.Desc
	}

	var api googleAPIError
	if err := json.Unmarshal(body, &api); err == nil && (api.Error.Message != "" || api.Error.Status != "") {
		code := api.Error.Status
		if code == "" && api.Error.Code != 0 {
			code = fmt.Sprintf("%d", api.Error.Code)
		}
		return code, api.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "google request failed"
	}

	return "", msg
}
