package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// IdentityProviderRepository implements auth.IdentityProviderStore using Bun.
type IdentityProviderRepository struct {
	db *bun.DB
}

var _ auth.IdentityProviderStore = (*IdentityProviderRepository)(nil)

// NewIdentityProviderRepository creates a new repository.
func NewIdentityProviderRepository(db *bun.DB) *IdentityProviderRepository {
	return &IdentityProviderRepository{db: db}
}

// UpsertByName returns the provider record for name, inserting it on first
// use. Concurrent callers converge on the same row.
func (r *IdentityProviderRepository) UpsertByName(ctx context.Context, name string) (*auth.IdentityProvider, error) {
	return r.UpsertByNameTx(ctx, r.db, name)
}

// UpsertByNameTx is UpsertByName within tx.
func (r *IdentityProviderRepository) UpsertByNameTx(ctx context.Context, tx bun.IDB, name string) (*auth.IdentityProvider, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, goerrors.New("identity provider name is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	now := time.Now().UTC()
	record := &auth.IdentityProvider{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: &now,
	}

	if _, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert identity provider")
	}

	return r.findByName(ctx, tx, name)
}

// FindByName returns the provider record for name.
func (r *IdentityProviderRepository) FindByName(ctx context.Context, name string) (*auth.IdentityProvider, error) {
	return r.findByName(ctx, r.db, normalizeName(name))
}

// FindByID returns the provider record with id.
func (r *IdentityProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*auth.IdentityProvider, error) {
	record := &auth.IdentityProvider{}
	err := r.db.NewSelect().
		Model(record).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "failed to retrieve identity provider")
	}
	return record, nil
}

func (r *IdentityProviderRepository) findByName(ctx context.Context, tx bun.IDB, name string) (*auth.IdentityProvider, error) {
	record := &auth.IdentityProvider{}
	err := tx.NewSelect().
		Model(record).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "failed to retrieve identity provider")
	}
	return record, nil
}

func notFoundOr(err error, message string) error {
	if goerrors.Is(err, sql.ErrNoRows) {
		return auth.ErrIdentityProviderNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
