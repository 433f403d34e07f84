// Package redisstore keeps refresh tokens in Redis instead of the accounts
// table. It satisfies auth.SessionStore.
package redisstore

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces refresh token keys.
const DefaultPrefix = "auth:refresh:"

// Store is a Redis backed auth.SessionStore. A single token is kept per
// account, writes overwrite the previous one.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger auth.Logger
}

var _ auth.SessionStore = (*Store)(nil)

// New returns a store whose keys expire after ttl. ttl is usually the
// refresh token TTL. A zero ttl keeps keys until they are cleared.
func New(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    ttl,
	}
}

// WithPrefix overrides the key prefix.
func (s *Store) WithPrefix(prefix string) *Store {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

// WithLogger sets the logger.
func (s *Store) WithLogger(logger auth.Logger) *Store {
	s.logger = logger
	return s
}

func (s *Store) key(accountID string) string {
	return s.prefix + strings.TrimSpace(accountID)
}

// GetRefreshToken returns the stored token, nil when none is stored.
func (s *Store) GetRefreshToken(ctx context.Context, accountID string) (*string, error) {
	val, err := s.client.Get(ctx, s.key(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logError("redis get refresh token", accountID, err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read refresh token")
	}
	return &val, nil
}

// SetRefreshToken stores token for the account. A nil token clears it.
func (s *Store) SetRefreshToken(ctx context.Context, accountID string, token *string) error {
	if token == nil {
		if err := s.client.Del(ctx, s.key(accountID)).Err(); err != nil {
			s.logError("redis clear refresh token", accountID, err)
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear refresh token")
		}
		return nil
	}

	if err := s.client.Set(ctx, s.key(accountID), *token, s.ttl).Err(); err != nil {
		s.logError("redis set refresh token", accountID, err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
	}
	return nil
}

func (s *Store) logError(msg, accountID string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "account_id", accountID, "error", err)
	}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redis url")
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "redis not reachable")
	}

	return client, nil
}
