package auth_test

import (
	"context"
	"errors"
	"testing"

	auth "github.com/goliatone/go-token-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, password string) *string {
	t.Helper()
	hash, err := auth.NewBcryptHasher(bcrypt.MinCost).HashPassword(password)
	require.NoError(t, err)
	return &hash
}

func TestIdentityResolver_ResolveLocal(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	account := &auth.Account{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: hashFor(t, "correct-horse"),
	}

	t.Run("valid credentials", func(t *testing.T) {
		accounts := new(MockAccountStore)
		accounts.On("FindByEmail", mock.Anything, "user@example.com").Return(account, nil).Once()

		got, err := auth.NewIdentityResolver(accounts, nil, hasher).ResolveLocal(ctx, "  USER@example.com ", "correct-horse")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
		accounts.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		accounts := new(MockAccountStore)
		accounts.On("FindByEmail", mock.Anything, "user@example.com").Return(account, nil).Once()

		_, err := auth.NewIdentityResolver(accounts, nil, hasher).ResolveLocal(ctx, "user@example.com", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
		assert.Equal(t, 400, auth.HTTPStatus(err))
	})

	t.Run("unknown email", func(t *testing.T) {
		accounts := new(MockAccountStore)
		accounts.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, auth.ErrAccountNotFound).Once()

		_, err := auth.NewIdentityResolver(accounts, nil, hasher).ResolveLocal(ctx, "nobody@example.com", "x")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		assert.Equal(t, 404, auth.HTTPStatus(err))
	})

	t.Run("provider only account", func(t *testing.T) {
		providerID := uuid.New()
		linked := &auth.Account{ID: uuid.New(), Email: "social@example.com", ProviderID: &providerID}

		accounts := new(MockAccountStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(linked, nil).Once()

		_, err := auth.NewIdentityResolver(accounts, nil, hasher).ResolveLocal(ctx, "social@example.com", "anything")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	})

	t.Run("store failure", func(t *testing.T) {
		accounts := new(MockAccountStore)
		accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

		_, err := auth.NewIdentityResolver(accounts, nil, hasher).ResolveLocal(ctx, "user@example.com", "x")
		require.Error(t, err)
		assert.Equal(t, 500, auth.HTTPStatus(err))
	})
}

func TestIdentityResolver_ResolveOrCreateOAuth(t *testing.T) {
	ctx := context.Background()
	google := &auth.IdentityProvider{ID: uuid.New(), Name: "google"}
	github := &auth.IdentityProvider{ID: uuid.New(), Name: "github"}

	profile := auth.OAuthProfile{
		Provider:      "google",
		ProviderToken: "google-sub-123",
		Email:         "Social@Example.com",
		FirstName:     "Ada",
		LastName:      "Lovelace",
	}

	t.Run("first login creates passwordless account", func(t *testing.T) {
		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)

		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(nil, auth.ErrAccountNotFound).Once()
		providers.On("UpsertByName", mock.Anything, "google").Return(google, nil).Once()
		accounts.On("Create", mock.Anything, mock.MatchedBy(func(a *auth.Account) bool {
			return a.Email == "social@example.com" &&
				a.PasswordHash == nil &&
				a.ProviderID != nil && *a.ProviderID == google.ID &&
				a.ProviderToken != nil && *a.ProviderToken == "google-sub-123" &&
				a.FirstName == "Ada"
		})).Return(func(_ context.Context, a *auth.Account) *auth.Account {
			a.ID = uuid.New()
			return a
		}, nil).Once()

		got, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, profile)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.False(t, got.HasPassword())
		assert.True(t, got.IsLinked())
		accounts.AssertExpectations(t)
		providers.AssertExpectations(t)
	})

	t.Run("returning login reuses linked account", func(t *testing.T) {
		existing := &auth.Account{
			ID:            uuid.New(),
			Email:         "social@example.com",
			ProviderID:    &google.ID,
			ProviderToken: stringRef("google-sub-123"),
		}

		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(existing, nil).Once()
		providers.On("FindByName", mock.Anything, "google").Return(google, nil).Once()

		got, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, got.ID)
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		providers.AssertNotCalled(t, "UpsertByName", mock.Anything, mock.Anything)
	})

	noAssertion := profile
	noAssertion.ProviderToken = ""

	conflicts := []struct {
		name     string
		existing *auth.Account
		profile  *auth.OAuthProfile
	}{
		{
			name:     "local password account",
			existing: &auth.Account{ID: uuid.New(), Email: "social@example.com", PasswordHash: hashFor(t, "pw")},
		},
		{
			name:     "local password account without assertion",
			existing: &auth.Account{ID: uuid.New(), Email: "social@example.com", PasswordHash: hashFor(t, "pw")},
			profile:  &noAssertion,
		},
		{
			name: "linked account without assertion",
			existing: &auth.Account{
				ID:            uuid.New(),
				Email:         "social@example.com",
				ProviderID:    &google.ID,
				ProviderToken: stringRef("google-sub-123"),
			},
			profile: &noAssertion,
		},
		{
			name: "linked to another provider",
			existing: &auth.Account{
				ID:            uuid.New(),
				Email:         "social@example.com",
				ProviderID:    &github.ID,
				ProviderToken: stringRef("google-sub-123"),
			},
		},
		{
			name: "different assertion",
			existing: &auth.Account{
				ID:            uuid.New(),
				Email:         "social@example.com",
				ProviderID:    &google.ID,
				ProviderToken: stringRef("google-sub-999"),
			},
		},
		{
			name: "missing assertion",
			existing: &auth.Account{
				ID:         uuid.New(),
				Email:      "social@example.com",
				ProviderID: &google.ID,
			},
		},
	}

	for _, tt := range conflicts {
		t.Run("conflict "+tt.name, func(t *testing.T) {
			accounts := new(MockAccountStore)
			providers := new(MockProviderStore)
			accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(tt.existing, nil).Once()
			providers.On("FindByName", mock.Anything, "google").Return(google, nil).Maybe()

			in := profile
			if tt.profile != nil {
				in = *tt.profile
			}

			_, err := auth.NewIdentityResolver(accounts, providers, nil).
				WithLogger(quietLogger{}).
				ResolveOrCreateOAuth(ctx, in)
			assert.ErrorIs(t, err, auth.ErrConflictingIdentity)
			assert.True(t, auth.IsConflictingIdentity(err))
			accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
			providers.AssertNotCalled(t, "UpsertByName", mock.Anything, mock.Anything)
		})
	}

	t.Run("conflict when provider was never registered", func(t *testing.T) {
		existing := &auth.Account{
			ID:            uuid.New(),
			Email:         "social@example.com",
			ProviderID:    &github.ID,
			ProviderToken: stringRef("google-sub-123"),
		}

		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(existing, nil).Once()
		providers.On("FindByName", mock.Anything, "google").Return(nil, auth.ErrIdentityProviderNotFound).Once()

		_, err := auth.NewIdentityResolver(accounts, providers, nil).
			WithLogger(quietLogger{}).
			ResolveOrCreateOAuth(ctx, profile)
		assert.ErrorIs(t, err, auth.ErrConflictingIdentity)
		providers.AssertNotCalled(t, "UpsertByName", mock.Anything, mock.Anything)
	})

	t.Run("missing assertion without account is invalid", func(t *testing.T) {
		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(nil, auth.ErrAccountNotFound).Once()

		_, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, noAssertion)
		require.Error(t, err)
		assert.Equal(t, 400, auth.HTTPStatus(err))
		assert.False(t, auth.IsConflictingIdentity(err))
		providers.AssertNotCalled(t, "UpsertByName", mock.Anything, mock.Anything)
		accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("lost create race reuses the winning account", func(t *testing.T) {
		winner := &auth.Account{
			ID:            uuid.New(),
			Email:         "social@example.com",
			ProviderID:    &google.ID,
			ProviderToken: stringRef("google-sub-123"),
		}

		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(nil, auth.ErrAccountNotFound).Once()
		providers.On("UpsertByName", mock.Anything, "google").Return(google, nil).Once()
		accounts.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("UNIQUE constraint failed: accounts.email")).Once()
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(winner, nil).Once()
		providers.On("FindByName", mock.Anything, "google").Return(google, nil).Once()

		got, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, winner.ID, got.ID)
		accounts.AssertExpectations(t)
		providers.AssertExpectations(t)
	})

	t.Run("lost create race against another identity conflicts", func(t *testing.T) {
		winner := &auth.Account{ID: uuid.New(), Email: "social@example.com", PasswordHash: hashFor(t, "pw")}

		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(nil, auth.ErrAccountNotFound).Once()
		providers.On("UpsertByName", mock.Anything, "google").Return(google, nil).Once()
		accounts.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("UNIQUE constraint failed: accounts.email")).Once()
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(winner, nil).Once()

		_, err := auth.NewIdentityResolver(accounts, providers, nil).
			WithLogger(quietLogger{}).
			ResolveOrCreateOAuth(ctx, profile)
		assert.ErrorIs(t, err, auth.ErrConflictingIdentity)
	})

	t.Run("create failure without a winner is internal", func(t *testing.T) {
		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, "social@example.com").Return(nil, auth.ErrAccountNotFound).Twice()
		providers.On("UpsertByName", mock.Anything, "google").Return(google, nil).Once()
		accounts.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("disk full")).Once()

		_, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, profile)
		require.Error(t, err)
		assert.Equal(t, 500, auth.HTTPStatus(err))
		accounts.AssertExpectations(t)
	})

	invalid := []struct {
		name    string
		profile auth.OAuthProfile
	}{
		{name: "missing email", profile: auth.OAuthProfile{Provider: "google", ProviderToken: "sub"}},
		{name: "bad email", profile: auth.OAuthProfile{Provider: "google", ProviderToken: "sub", Email: "not-an-email"}},
		{name: "missing provider", profile: auth.OAuthProfile{ProviderToken: "sub", Email: "a@example.com"}},
	}

	for _, tt := range invalid {
		t.Run("invalid "+tt.name, func(t *testing.T) {
			accounts := new(MockAccountStore)
			providers := new(MockProviderStore)

			_, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, tt.profile)
			require.Error(t, err)
			assert.Equal(t, 400, auth.HTTPStatus(err))
			accounts.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
			providers.AssertNotCalled(t, "UpsertByName", mock.Anything, mock.Anything)
		})
	}

	t.Run("provider store not configured", func(t *testing.T) {
		_, err := auth.NewIdentityResolver(new(MockAccountStore), nil, nil).ResolveOrCreateOAuth(ctx, profile)
		require.Error(t, err)
		assert.Equal(t, 500, auth.HTTPStatus(err))
	})

	t.Run("provider upsert failure", func(t *testing.T) {
		accounts := new(MockAccountStore)
		providers := new(MockProviderStore)
		accounts.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, auth.ErrAccountNotFound).Once()
		providers.On("UpsertByName", mock.Anything, "google").Return(nil, errors.New("db down")).Once()

		_, err := auth.NewIdentityResolver(accounts, providers, nil).ResolveOrCreateOAuth(ctx, profile)
		require.Error(t, err)
		assert.Equal(t, 500, auth.HTTPStatus(err))
	})
}

func stringRef(s string) *string {
	return &s
}
