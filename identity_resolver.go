package auth

import (
	"context"
	"crypto/subtle"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// Validate checks the provider assertion before it reaches the stores. The
// assertion itself is only required when a new account is created.
func (p OAuthProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Provider, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

func (p OAuthProfile) validateForCreate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProviderToken, validation.Required),
	)
}

// IdentityResolver maps credentials or provider assertions to accounts
type IdentityResolver struct {
	accounts  AccountStore
	providers IdentityProviderStore
	hasher    PasswordAuthenticator
	logger    Logger
}

// NewIdentityResolver creates a resolver over the given stores
func NewIdentityResolver(accounts AccountStore, providers IdentityProviderStore, hasher PasswordAuthenticator) *IdentityResolver {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &IdentityResolver{
		accounts:  accounts,
		providers: providers,
		hasher:    hasher,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the resolver.
func (r *IdentityResolver) WithLogger(logger Logger) *IdentityResolver {
	r.logger = normalizeLogger(logger)
	return r
}

// ResolveLocal returns the account for email when password matches its
// credential. It fails with ErrAccountNotFound or ErrInvalidCredential.
func (r *IdentityResolver) ResolveLocal(ctx context.Context, email, password string) (*Account, error) {
	account, err := r.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account")
	}

	if !account.HasPassword() {
		r.logger.Debug("ResolveLocal account has no local credential", "account_id", account.ID)
		return nil, ErrInvalidCredential
	}

	if !r.verify(password, *account.PasswordHash) {
		return nil, ErrInvalidCredential
	}

	return account, nil
}

// ResolveOrCreateOAuth returns the account linked to profile, creating a
// passwordless account on first login. An existing account is only reused
// when it is linked to the same provider and holds the same assertion.
func (r *IdentityResolver) ResolveOrCreateOAuth(ctx context.Context, profile OAuthProfile) (*Account, error) {
	profile.Email = normalizeEmail(profile.Email)
	if err := profile.Validate(); err != nil {
		return nil, validationError(err, "invalid provider profile")
	}

	if r.providers == nil {
		return nil, errors.New("identity provider store is not configured", errors.CategoryInternal)
	}

	existing, err := r.findAccount(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.reuseLinked(ctx, existing, profile)
	}

	if err := profile.validateForCreate(); err != nil {
		return nil, validationError(err, "invalid provider profile")
	}

	provider, err := r.providers.UpsertByName(ctx, profile.Provider)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve identity provider")
	}

	account := &Account{
		Email:         profile.Email,
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		ProviderID:    &provider.ID,
		ProviderToken: stringPtr(profile.ProviderToken),
	}

	created, cerr := r.accounts.Create(ctx, account)
	if cerr == nil {
		return created, nil
	}

	// a concurrent first login may have won the unique email
	if winner, err := r.findAccount(ctx, profile.Email); err == nil && winner != nil {
		return r.reuseLinked(ctx, winner, profile)
	}

	var richErr *errors.Error
	if errors.As(cerr, &richErr) {
		return nil, richErr
	}
	return nil, errors.Wrap(cerr, errors.CategoryInternal, "failed to create provider account")
}

// findAccount returns nil, nil when no account holds email.
func (r *IdentityResolver) findAccount(ctx context.Context, email string) (*Account, error) {
	account, err := r.accounts.FindByEmail(ctx, email)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account")
	}
	return account, nil
}

func (r *IdentityResolver) reuseLinked(ctx context.Context, account *Account, profile OAuthProfile) (*Account, error) {
	if profile.ProviderToken == "" || !account.IsLinked() || account.ProviderToken == nil {
		return nil, r.conflict(account, profile)
	}

	provider, err := r.providers.FindByName(ctx, profile.Provider)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, r.conflict(account, profile)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve identity provider")
	}

	if !linkedTo(account, provider, profile.ProviderToken) {
		return nil, r.conflict(account, profile)
	}
	return account, nil
}

func (r *IdentityResolver) conflict(account *Account, profile OAuthProfile) error {
	r.logger.Warn("ResolveOrCreateOAuth conflicting identity",
		"provider", profile.Provider,
		"account_id", account.ID,
	)
	return ErrConflictingIdentity
}

// linkedTo expects account to be linked with a stored assertion.
func linkedTo(account *Account, provider *IdentityProvider, assertion string) bool {
	if provider == nil || *account.ProviderID != provider.ID {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*account.ProviderToken), []byte(assertion)) == 1
}

func (r *IdentityResolver) verify(password, hash string) bool {
	if v, ok := r.hasher.(interface{ Verify(string, string) bool }); ok {
		return v.Verify(password, hash)
	}
	return r.hasher.ComparePasswordAndHash(password, hash) == nil
}
