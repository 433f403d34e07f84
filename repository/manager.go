package repository

import (
	"context"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	auth "github.com/goliatone/go-token-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Manager exposes all repositories
type Manager interface {
	repository.Validator
	MustValidate()
	Accounts() auth.Accounts
	IdentityProviders() *IdentityProviderRepository
	Migrate(ctx context.Context) error
}

type mngr struct {
	db                *bun.DB
	accounts          auth.Accounts
	identityProviders *IdentityProviderRepository
	logger            auth.Logger
}

// NewRepositoryManager wires the bun backed stores over db
func NewRepositoryManager(db *bun.DB, logger auth.Logger) Manager {
	return &mngr{
		db:                db,
		accounts:          auth.NewAccountsRepository(db),
		identityProviders: NewIdentityProviderRepository(db),
		logger:            logger,
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.identityProviders == nil {
		return errors.New("repository identityProviders should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) Accounts() auth.Accounts {
	return m.accounts
}

func (m mngr) IdentityProviders() *IdentityProviderRepository {
	return m.identityProviders
}

// Migrate applies the embedded schema for the database dialect
func (m mngr) Migrate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return auth.Migrate(ctx, m.db.DB, GooseDialect(m.db), m.logger)
}

// GooseDialect maps the bun dialect of db to a goose dialect name
func GooseDialect(db *bun.DB) string {
	switch db.Dialect().Name() {
	case dialect.PG:
		return "postgres"
	case dialect.SQLite:
		return "sqlite3"
	case dialect.MySQL:
		return "mysql"
	case dialect.MSSQL:
		return "mssql"
	default:
		return db.Dialect().Name().String()
	}
}
