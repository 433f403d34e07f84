package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// AccountSessionStore keeps the refresh token on the account row
type AccountSessionStore struct {
	accounts AccountStore
}

var _ SessionStore = (*AccountSessionStore)(nil)

// NewAccountSessionStore returns a SessionStore backed by accounts
func NewAccountSessionStore(accounts AccountStore) *AccountSessionStore {
	return &AccountSessionStore{accounts: accounts}
}

// GetRefreshToken returns the stored refresh token or nil when logged out
func (s *AccountSessionStore) GetRefreshToken(ctx context.Context, accountID string) (*string, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.RefreshToken, nil
}

// SetRefreshToken overwrites the stored token. A nil token clears it.
func (s *AccountSessionStore) SetRefreshToken(ctx context.Context, accountID string, token *string) error {
	id, err := parseAccountID(accountID)
	if err != nil {
		return err
	}

	record := &Account{ID: id, RefreshToken: token}
	if _, err := s.accounts.Update(ctx, record, ColumnRefreshToken); err != nil {
		if isRecordNotFound(err) {
			return ErrAccountNotFound
		}
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return richErr
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to persist refresh token")
	}

	return nil
}
