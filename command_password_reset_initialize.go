package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset.initialize" }

// Validate checks the reset request input
func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

type InitializePasswordResetResponse struct {
	AccountID string
	Email     string
	Token     string
	ExpiresAt time.Time
	Notified  bool
}

type InitializePasswordResetHandler struct {
	accounts AccountStore
	tokens   *TokenService
	notifier ResetNotifier
	activity ActivitySink
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(accounts AccountStore, tokens *TokenService) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		accounts: accounts,
		tokens:   tokens,
		notifier: NewLogNotifier(nil),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithNotifier sets the collaborator that delivers reset tokens.
func (h *InitializePasswordResetHandler) WithNotifier(notifier ResetNotifier) *InitializePasswordResetHandler {
	if notifier != nil {
		h.notifier = notifier
	}
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.Email = normalizeEmail(event.Email)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid password reset request")
	}

	account, err := h.accounts.FindByEmail(ctx, event.Email)
	if err != nil {
		if isRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	accountID := account.ID.String()

	token, expiresAt, err := h.tokens.IssueCapabilityToken(accountID, CapabilityTokenOptions{
		Purpose: PurposePasswordReset,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	resp := &InitializePasswordResetResponse{
		AccountID: accountID,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	}

	notification := PasswordResetNotification{
		AccountID: accountID,
		Email:     account.Email,
		FirstName: account.FirstName,
		Token:     token,
		ExpiresAt: expiresAt,
	}

	// delivery is best-effort, the request succeeds either way
	if err := h.notifier.SendPasswordReset(ctx, notification); err != nil {
		h.logger.Error("password reset notification failed", "account_id", accountID, "error", err)
	} else {
		resp.Notified = true
	}

	h.recordActivity(ctx, accountID, resp.Notified)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, accountID string, notified bool) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor:     accountActor(accountID),
		AccountID: accountID,
		Metadata: map[string]any{
			"notified": notified,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		normalizeLogger(h.logger).Warn("activity sink error during password reset request: %v", err)
	}
}
