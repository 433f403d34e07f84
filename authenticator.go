package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderGoogle is the canonical identity provider name for Google
const ProviderGoogle = "google"

// Auther composes credential checks, token issuance and session
// persistence into the public authentication operations.
type Auther struct {
	accounts     AccountStore
	providers    IdentityProviderStore
	sessions     SessionStore
	tokens       *TokenService
	hasher       PasswordAuthenticator
	validator    TokenValidator
	notifier     ResetNotifier
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator. It fails with
// ErrBadConfiguration when cfg is incomplete.
func NewAuthenticator(accounts AccountStore, providers IdentityProviderStore, cfg Config) (*Auther, error) {
	if accounts == nil {
		return nil, badConfiguration("account store is required", nil)
	}

	tokens, err := NewTokenService(cfg, defLogger{})
	if err != nil {
		return nil, err
	}

	return &Auther{
		accounts:     accounts,
		providers:    providers,
		sessions:     NewAccountSessionStore(accounts),
		tokens:       tokens,
		hasher:       NewBcryptHasher(cfg.GetPasswordHashCost()),
		notifier:     NewLogNotifier(nil),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.tokens.WithLogger(s.logger)
	if n, ok := s.notifier.(*LogNotifier); ok {
		n.logger = s.logger
	}
	return s
}

// WithSessionStore replaces the default account row session store.
func (s *Auther) WithSessionStore(store SessionStore) *Auther {
	if store != nil {
		s.sessions = store
	}
	return s
}

// WithNotifier sets the collaborator that delivers password reset tokens.
func (s *Auther) WithNotifier(notifier ResetNotifier) *Auther {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithPasswordHasher overrides the credential verifier.
func (s *Auther) WithPasswordHasher(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom validator for access tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.validator = validator
	return s
}

// WithClock overrides the time source used for tokens.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	s.tokens.WithClock(now)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// SessionStore returns the store holding refresh tokens
func (s *Auther) SessionStore() SessionStore {
	return s.sessions
}

// RefreshGuard returns a guard bound to this authenticator's tokens and sessions
func (s *Auther) RefreshGuard() *RefreshGuard {
	return NewRefreshGuard(s.tokens, s.sessions).WithLogger(s.logger)
}

// IdentityResolver returns a resolver bound to this authenticator's stores
func (s *Auther) IdentityResolver() *IdentityResolver {
	return NewIdentityResolver(s.accounts, s.providers, s.hasher).WithLogger(s.logger)
}

// Register creates a local account
func (s *Auther) Register(ctx context.Context, msg RegisterAccountMessage) (*Account, error) {
	var account *Account
	onResponse := msg.OnResponse
	msg.OnResponse = func(a *Account) {
		account = a
		if onResponse != nil {
			onResponse(a)
		}
	}

	handler := NewRegisterAccountHandler(s.accounts, s.hasher).
		WithLogger(s.logger).
		WithActivitySink(s.activitySink)

	if err := handler.Execute(ctx, msg); err != nil {
		s.logger.Error("Register failed", "error", err)
		return nil, err
	}

	return account, nil
}

// Login verifies email and password and opens a new session
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := s.IdentityResolver().ResolveLocal(ctx, email, password)
	if err != nil {
		s.logger.Error("Login resolve local error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": normalizeEmail(email),
			"error":      err.Error(),
		})
		return nil, err
	}

	accountID := account.ID.String()

	pair, err := s.openSession(ctx, accountID)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, accountActor(accountID), accountID, map[string]any{
			"identifier": account.Email,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, accountActor(accountID), accountID, map[string]any{
		"identifier": account.Email,
	})

	return pair, nil
}

// LoginWithProvider resolves or links the account asserted by an external
// provider and opens a new session
func (s *Auther) LoginWithProvider(ctx context.Context, profile OAuthProfile) (*TokenPair, error) {
	profile.Provider = strings.ToLower(strings.TrimSpace(profile.Provider))

	account, err := s.IdentityResolver().ResolveOrCreateOAuth(ctx, profile)
	if err != nil {
		s.logger.Error("LoginWithProvider resolve error", "provider", profile.Provider, "error", err)
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"provider":   profile.Provider,
			"identifier": normalizeEmail(profile.Email),
			"error":      err.Error(),
		})
		return nil, err
	}

	accountID := account.ID.String()

	pair, err := s.openSession(ctx, accountID)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventSocialLoginFailure, accountActor(accountID), accountID, map[string]any{
			"provider": profile.Provider,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSocialLogin, accountActor(accountID), accountID, map[string]any{
		"provider":   profile.Provider,
		"identifier": account.Email,
	})

	return pair, nil
}

// LoginWithGoogle is LoginWithProvider for a Google assertion
func (s *Auther) LoginWithGoogle(ctx context.Context, profile OAuthProfile) (*TokenPair, error) {
	provider := strings.ToLower(strings.TrimSpace(profile.Provider))
	if provider != "" && provider != ProviderGoogle {
		return nil, ErrUnsupportedProvider
	}
	profile.Provider = ProviderGoogle
	return s.LoginWithProvider(ctx, profile)
}

// Refresh rotates the session of an account already authenticated as the
// holder of its current refresh token. The previous refresh token stops
// matching the stored one. Concurrent calls are last-write-wins.
func (s *Auther) Refresh(ctx context.Context, accountID string) (*TokenPair, error) {
	if _, err := parseAccountID(accountID); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}

	pair, err := s.openSession(ctx, account.ID.String())
	if err != nil {
		s.logger.Error("Refresh failed to rotate session", "account_id", accountID, "error", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, accountActor(accountID), accountID, nil)

	return pair, nil
}

// RefreshWithToken authenticates raw through the RefreshGuard and rotates
// the session
func (s *Auther) RefreshWithToken(ctx context.Context, raw string) (*TokenPair, error) {
	accountID, err := s.RefreshGuard().Authenticate(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.Refresh(ctx, accountID)
}

// Logout clears the stored refresh token. Calling it twice is a no-op.
func (s *Auther) Logout(ctx context.Context, accountID string) error {
	if _, err := parseAccountID(accountID); err != nil {
		return err
	}

	if err := s.sessions.SetRefreshToken(ctx, accountID, nil); err != nil {
		s.logger.Error("Logout failed to clear session", "account_id", accountID, "error", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, accountActor(accountID), accountID, nil)

	return nil
}

// ForgotPassword mints a reset token for the account of email and hands
// it to the notifier
func (s *Auther) ForgotPassword(ctx context.Context, email string) error {
	return s.InitializePasswordReset(ctx, InitializePasswordResetMessage{Email: email})
}

// InitializePasswordReset is ForgotPassword with access to the response
func (s *Auther) InitializePasswordReset(ctx context.Context, msg InitializePasswordResetMessage) error {
	handler := NewInitializePasswordResetHandler(s.accounts, s.tokens).
		WithNotifier(s.notifier).
		WithLogger(s.logger).
		WithActivitySink(s.activitySink)

	if err := handler.Execute(ctx, msg); err != nil {
		s.logger.Error("ForgotPassword failed", "error", err)
		return err
	}
	return nil
}

// ResetPassword rewrites the credential of the account bound to token.
// Sessions opened before the reset are kept.
func (s *Auther) ResetPassword(ctx context.Context, token, password string) error {
	handler := NewFinalizePasswordResetHandler(s.accounts, s.tokens, s.hasher).
		WithLogger(s.logger).
		WithActivitySink(s.activitySink)

	if err := handler.Execute(ctx, FinalizePasswordResetMessage{Token: token, Password: password}); err != nil {
		s.logger.Error("ResetPassword failed", "error", err)
		return err
	}
	return nil
}

// SessionFromToken validates an access token and returns its session
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.validator
	if validator == nil {
		validator = AccessTokenValidator(s.tokens)
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Debug("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

// AccountFromSession loads the account a session belongs to
func (s *Auther) AccountFromSession(ctx context.Context, session Session) (*Account, error) {
	if session == nil {
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.FindByID(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("AccountFromSession find account: %s", err)
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

func (s *Auther) openSession(ctx context.Context, accountID string) (*TokenPair, error) {
	pair, err := s.tokens.IssueTokenPair(accountID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.SetRefreshToken(ctx, accountID, &pair.RefreshToken); err != nil {
		return nil, err
	}

	return pair, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
