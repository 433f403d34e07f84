package social

import (
	"context"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
)

// ProviderLogin opens a session for a provider assertion.
// auth.Auther satisfies it.
type ProviderLogin interface {
	LoginWithProvider(ctx context.Context, profile auth.OAuthProfile) (*auth.TokenPair, error)
}

// Authenticator orchestrates the authorization code flow and hands the
// resolved profile to a ProviderLogin.
type Authenticator struct {
	providers    map[string]Provider
	stateManager StateManager
	login        ProviderLogin
	config       Config
	logger       auth.Logger
	now          func() time.Time
}

// Config configures the social authenticator.
type Config struct {
	DefaultRedirectURL   string
	StateSecret          string
	StateTTL             time.Duration
	RequireEmailVerified bool
}

// Option configures the social authenticator.
type Option func(*Authenticator)

// NewAuthenticator creates a new social authenticator.
func NewAuthenticator(login ProviderLogin, config Config, opts ...Option) *Authenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = DefaultStateTTL
	}

	sa := &Authenticator{
		providers: make(map[string]Provider),
		login:     login,
		config:    cfg,
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.stateManager == nil {
		sa.stateManager = NewStateManagerFromSecret(cfg.StateSecret, cfg.StateTTL)
	}

	return sa
}

// WithProvider registers a provider.
func WithProvider(provider Provider) Option {
	return func(sa *Authenticator) {
		if provider == nil {
			return
		}
		sa.providers[strings.ToLower(provider.Name())] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) Option {
	return func(sa *Authenticator) {
		sa.stateManager = sm
	}
}

// WithLogger sets the logger.
func WithLogger(logger auth.Logger) Option {
	return func(sa *Authenticator) {
		sa.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(sa *Authenticator) {
		if now != nil {
			sa.now = now
		}
	}
}

// BeginAuth starts the OAuth flow for a provider.
func (sa *Authenticator) BeginAuth(ctx context.Context, providerName string, opts ...BeginAuthOption) (*AuthRedirect, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))

	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, providerNotFound(providerName)
	}

	cfg := &beginAuthConfig{redirectURL: sa.config.DefaultRedirectURL}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate code verifier")
	}

	now := sa.now()
	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  cfg.redirectURL,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(sa.config.StateTTL).Unix(),
	}

	stateToken, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode state")
	}

	authOpts := []AuthCodeOption{WithPKCE(computeCodeChallenge(codeVerifier), "S256")}
	if cfg.prompt != "" {
		authOpts = append(authOpts, WithPrompt(cfg.prompt))
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken, authOpts...),
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback and opens a session.
func (sa *Authenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*AuthResult, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))

	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		if HasTextCode(err, TextCodeStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrInvalidState
	}

	if state.Provider != providerName {
		return nil, ErrInvalidState.Clone().WithMetadata(map[string]any{
			"reason": "provider mismatch",
		})
	}

	if sa.now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, providerNotFound(providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		sa.getLogger().Error("social exchange failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		sa.getLogger().Error("social user info failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	if profile.Provider == "" {
		profile.Provider = providerName
	}

	if sa.config.RequireEmailVerified && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	tokens, err := sa.login.LoginWithProvider(ctx, profile.OAuthProfile())
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Tokens:      tokens,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns all registered providers sorted by name.
func (sa *Authenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sa *Authenticator) getLogger() auth.Logger {
	if sa.logger != nil {
		return sa.logger
	}
	return nopLogger{}
}

func providerNotFound(name string) error {
	return ErrProviderNotFound.Clone().WithMetadata(map[string]any{"provider": name})
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult contains the result of a successful authentication.
type AuthResult struct {
	Tokens      *auth.TokenPair
	Provider    string
	Profile     *SocialProfile
	RedirectURL string
}

// BeginAuthOption configures the auth initiation.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
	prompt      string
}

// WithRedirectURL sets the post-auth redirect URL.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		c.redirectURL = url
	}
}

// WithLoginPrompt forwards a prompt value to the provider.
func WithLoginPrompt(prompt string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		c.prompt = prompt
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
