package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" doc:"Password reset capability token"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

// Validate checks the reset input
func (p FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Token, validation.Required),
		validation.Field(&p.Password, validation.Required, validation.Length(1, maxPasswordBytes)),
	)
}

type FinalizePasswordResetHandler struct {
	accounts AccountStore
	tokens   *TokenService
	hasher   PasswordAuthenticator
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(accounts AccountStore, tokens *TokenService, hasher PasswordAuthenticator) *FinalizePasswordResetHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &FinalizePasswordResetHandler{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password reset data")
	}

	if h.tokens.IsExpired(PurposePasswordReset, event.Token) {
		return ErrInvalidToken
	}

	// gated above, the signature and expiry were already checked
	claims, err := h.tokens.Decode(event.Token)
	if err != nil {
		return ErrInvalidToken
	}

	accountID := claims.UserID()

	account, err := h.accounts.FindByID(ctx, accountID)
	if err != nil {
		if isRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account for password reset")
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	now := time.Now()
	account.PasswordHash = &hash
	account.UpdatedAt = &now

	if _, err := h.accounts.Update(ctx, account, ColumnPasswordHash, ColumnUpdatedAt); err != nil {
		if isRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password")
	}

	h.recordActivity(ctx, account)

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     accountActor(account.ID.String()),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"email": account.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		normalizeLogger(h.logger).Warn("activity sink error during password reset: %v", err)
	}
}
