package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-token-auth"
	"github.com/goliatone/go-token-auth/repository"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"
)

// MockAccountStore implements auth.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	args := m.Called(ctx, id)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) Create(ctx context.Context, record *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, record)
	switch a := args.Get(0).(type) {
	case func(context.Context, *auth.Account) *auth.Account:
		return a(ctx, record), args.Error(1)
	case *auth.Account:
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) Update(ctx context.Context, record *auth.Account, columns ...string) (*auth.Account, error) {
	args := m.Called(ctx, record, columns)
	if a := args.Get(0); a != nil {
		return a.(*auth.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProviderStore implements auth.IdentityProviderStore
type MockProviderStore struct {
	mock.Mock
}

func (m *MockProviderStore) FindByName(ctx context.Context, name string) (*auth.IdentityProvider, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*auth.IdentityProvider), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProviderStore) UpsertByName(ctx context.Context, name string) (*auth.IdentityProvider, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*auth.IdentityProvider), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSessionStore implements auth.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetRefreshToken(ctx context.Context, accountID string) (*string, error) {
	args := m.Called(ctx, accountID)
	if t := args.Get(0); t != nil {
		return t.(*string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionStore) SetRefreshToken(ctx context.Context, accountID string, token *string) error {
	args := m.Called(ctx, accountID, token)
	return args.Error(0)
}

// MockNotifier implements auth.ResetNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, n auth.PasswordResetNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockLogger implements auth.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) { m.Called(format, args) }
func (m *MockLogger) Info(format string, args ...any)  { m.Called(format, args) }
func (m *MockLogger) Warn(format string, args ...any)  { m.Called(format, args) }
func (m *MockLogger) Error(format string, args ...any) { m.Called(format, args) }

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []auth.PasswordResetNotification
}

func (c *capturingNotifier) SendPasswordReset(_ context.Context, n auth.PasswordResetNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *capturingNotifier) last() auth.PasswordResetNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return auth.PasswordResetNotification{}
	}
	return c.sent[len(c.sent)-1]
}

func testConfig() *auth.StaticConfig {
	return &auth.StaticConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		ResetTokenSecret:   "reset-secret",
		AccessTokenTTL:     5 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		ResetTokenTTL:      30 * time.Minute,
		PasswordHashCost:   bcrypt.MinCost,
		Issuer:             "auth-test",
	}
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newTestRepository(t *testing.T) repository.Manager {
	t.Helper()

	repo := repository.NewRepositoryManager(newTestDB(t), quietLogger{})
	require.NoError(t, repo.Validate())
	require.NoError(t, repo.Migrate(context.Background()))

	return repo
}

type testEnv struct {
	repo     repository.Manager
	auther   *auth.Auther
	clock    *clock
	sink     *capturingSink
	notifier *capturingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newTestRepository(t)
	c := newClock()
	sink := &capturingSink{}
	notifier := &capturingNotifier{}

	auther, err := auth.NewAuthenticator(repo.Accounts(), repo.IdentityProviders(), testConfig())
	require.NoError(t, err)

	auther.
		WithLogger(quietLogger{}).
		WithClock(c.Now).
		WithActivitySink(sink).
		WithNotifier(notifier)

	return &testEnv{repo: repo, auther: auther, clock: c, sink: sink, notifier: notifier}
}

func (e *testEnv) register(t *testing.T, email, password string) *auth.Account {
	t.Helper()
	account, err := e.auther.Register(context.Background(), auth.RegisterAccountMessage{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return account
}

func (e *testEnv) storedRefreshToken(t *testing.T, accountID uuid.UUID) *string {
	t.Helper()
	token, err := e.auther.SessionStore().GetRefreshToken(context.Background(), accountID.String())
	require.NoError(t, err)
	return token
}
