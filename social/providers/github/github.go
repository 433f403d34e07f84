package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-token-auth/social"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"
)

// Config holds GitHub OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the default GitHub scopes.
func DefaultScopes() []string {
	return []string{"user:email", "read:user"}
}

// Provider implements social.Provider for GitHub.
type Provider struct {
	oauth      *oauth2.Config
	userURL    string
	emailsURL  string
	httpClient *http.Client
}

var _ social.Provider = (*Provider)(nil)

// New creates a new GitHub provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = defaultEmailsURL
	}

	endpoint := endpoints.GitHub
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

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userURL:    cfg.UserURL,
		emailsURL:  cfg.EmailsURL,
		httpClient: client,
	}
}

// Name implements social.Provider.
func (p *Provider) Name() string {
	return "github"
}

// AuthCodeURL implements social.Provider.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.oauth.Scopes, opts...)

	oc := *p.oauth
	if len(cfg.Scopes) > 0 {
		oc.Scopes = cfg.Scopes
	}

	var params []oauth2.AuthCodeOption
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
		return nil, social.NewProviderError("github", "exchange", err)
	}

	scope, _ := tok.Extra("scope").(string)

	return &social.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       social.SplitScopes(scope),
	}, nil
}

// UserInfo implements social.Provider. The email comes from the emails
// endpoint since the user endpoint omits private addresses.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	if token == nil {
		return nil, providerError("user_info", 0, "", "missing token", nil)
	}

	client := oauth2.NewClient(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
	}))

	var user githubUser
	if err := p.getJSON(ctx, client, "user_info", p.userURL, &user); err != nil {
		return nil, err
	}

	var emails []githubEmail
	if err := p.getJSON(ctx, client, "emails", p.emailsURL, &emails); err != nil {
		return nil, err
	}

	email, verified, ok := primaryEmail(emails)
	if !ok {
		if user.Email == "" {
			return nil, providerError("emails", http.StatusOK, "email_not_found", "no valid email found", nil)
		}
		email, verified = user.Email, false
	}

	return user.profile(email, verified), nil
}

func (p *Provider) getJSON(ctx context.Context, client *http.Client, operation, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return social.NewProviderError("github", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return social.NewProviderError("github", operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return providerError(operation, resp.StatusCode, "", apiErrorMessage(body), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return providerError(operation, resp.StatusCode, "invalid_response", "failed to decode response", err)
	}

	return nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func primaryEmail(emails []githubEmail) (string, bool, bool) {
	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, true
		}
	}

	for _, e := range emails {
		if e.Verified {
			return e.Email, true, true
		}
	}

	return "", false, false
}

type githubAPIError struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func apiErrorMessage(body []byte) string {
	var apiErr githubAPIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "github request failed"
	}

	return msg
}

func providerError(operation string, status int, code, description string, err error) *social.ProviderError {
	return &social.ProviderError{
		Provider:    "github",
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
