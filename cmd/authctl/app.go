package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-token-auth"
	"github.com/goliatone/go-token-auth/config"
	"github.com/goliatone/go-token-auth/notification"
	"github.com/goliatone/go-token-auth/repository"
	"github.com/goliatone/go-token-auth/social"
	"github.com/goliatone/go-token-auth/social/providers/google"
	"github.com/goliatone/go-token-auth/stores/redisstore"
)

// app holds the wired services for one invocation
type app struct {
	cfg    *config.Config
	logger auth.Logger
	db     *bun.DB
	repo   repository.Manager
	auther *auth.Auther
	social *social.Authenticator
	redis  *redis.Client
	pool   *pgxpool.Pool
}

func newApp(ctx context.Context, cfg *config.Config, logger auth.Logger, sink auth.ActivitySink) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.repo = repository.NewRepositoryManager(db, logger)

	if err := a.repo.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	auther, err := auth.NewAuthenticator(a.repo.Accounts(), a.repo.IdentityProviders(), cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auther = auther.WithLogger(logger).WithActivitySink(sink)

	if cfg.RedisURL != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.auther.WithSessionStore(redisstore.New(client, cfg.GetRefreshTokenTTL()).WithLogger(logger))
	}

	if cfg.Postmark.Enabled() {
		notifier, err := notification.NewPostmarkNotifier(notification.Config{
			ServerToken:  cfg.Postmark.ServerToken,
			AccountToken: cfg.Postmark.AccountToken,
			From:         cfg.Postmark.Sender,
			ResetURL:     cfg.Postmark.ResetURL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.auther.WithNotifier(notifier.WithLogger(logger))
	}

	if cfg.Google.Enabled() {
		a.social = social.NewAuthenticator(a.auther, social.Config{
			StateSecret: cfg.OAuthStateKey,
		},
			social.WithLogger(logger),
			social.WithProvider(google.New(google.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				CallbackURL:  cfg.Google.CallbackURL,
			})),
		)
	}

	return a, nil
}

func (a *app) openDB(ctx context.Context) (*bun.DB, error) {
	dsn := a.cfg.DatabaseURL

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.pool = pool
		return bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Close releases the database and redis connections
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// stderrLogger writes key/value log lines to stderr
type stderrLogger struct {
	verbose bool
	out     io.Writer
}

func (l stderrLogger) Debug(format string, args ...any) {
	if l.verbose {
		l.print("DBG", format, args...)
	}
}

func (l stderrLogger) Info(format string, args ...any) {
	if l.verbose {
		l.print("INF", format, args...)
	}
}

func (l stderrLogger) Warn(format string, args ...any) {
	l.print("WRN", format, args...)
}

func (l stderrLogger) Error(format string, args ...any) {
	l.print("ERR", format, args...)
}

func (l stderrLogger) print(level, format string, args ...any) {
	out := l.out
	if out == nil {
		out = os.Stderr
	}
	if strings.Contains(format, "%") {
		fmt.Fprintf(out, "[%s] %s\n", level, fmt.Sprintf(format, args...))
		return
	}
	fmt.Fprintf(out, "[%s] %s %v\n", level, format, args)
}
