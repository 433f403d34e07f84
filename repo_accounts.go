package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the bun backed AccountStore
type Accounts interface {
	AccountStore
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *Account, columns ...string) (*Account, error)
	Repository() repository.Repository[*Account]
}

type accounts struct {
	repo repository.Repository[*Account]
	db   *bun.DB
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		repo: repo,
		db:   db,
	}
}

// Repository exposes the generic repository for queries not covered here
func (a *accounts) Repository() repository.Repository[*Account] {
	return a.repo
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}

	record, err := a.repo.GetByIdentifier(ctx, email)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) FindByID(ctx context.Context, id string) (*Account, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		// ids we never issued can not match a row
		return nil, ErrAccountNotFound
	}

	record, err := a.repo.GetByID(ctx, parsed.String())
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record == nil {
		return nil, goerrors.New("account record is required", goerrors.CategoryBadInput)
	}

	record.Email = normalizeEmail(record.Email)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}

	return a.repo.CreateTx(ctx, tx, record)
}

func (a *accounts) Update(ctx context.Context, record *Account, columns ...string) (*Account, error) {
	return a.UpdateColumnsTx(ctx, a.db, record, columns...)
}

// UpdateColumnsTx writes only the named columns so nil values persist as NULL
func (a *accounts) UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *Account, columns ...string) (*Account, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, goerrors.New("account id is required for update", goerrors.CategoryBadInput)
	}

	if len(columns) == 0 {
		return nil, goerrors.New("at least one column is required for update", goerrors.CategoryBadInput)
	}

	res, err := tx.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrAccountNotFound
	}

	return record, nil
}
