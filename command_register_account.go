package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type RegisterAccountMessage struct {
	FirstName  string `json:"first_name" example:"Pepe" doc:"Account first name."`
	LastName   string `json:"last_name" example:"Rone" doc:"Account last name."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Password   string `json:"password" example:"some_secret_word" doc:"Password"`
	UseHashid  bool   `json:"-"`
	OnResponse func(account *Account) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate checks the registration input
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(1, maxPasswordBytes)),
		validation.Field(&e.FirstName, validation.Length(0, 200)),
		validation.Field(&e.LastName, validation.Length(0, 200)),
	)
}

type RegisterAccountHandler struct {
	accounts AccountStore
	hasher   PasswordAuthenticator
	activity ActivitySink
	logger   Logger
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(accounts AccountStore, hasher PasswordAuthenticator) *RegisterAccountHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &RegisterAccountHandler{
		accounts: accounts,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.Email = normalizeEmail(event.Email)
	if err := event.Validate(); err != nil {
		return validationError(err, "invalid registration data")
	}

	if _, err := h.accounts.FindByEmail(ctx, event.Email); err == nil {
		return ErrAccountExists
	} else if !isRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing account")
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Email:        event.Email,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		PasswordHash: &hash,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			account.ID = id
		}
	}

	created, err := h.accounts.Create(ctx, account)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account").
			WithTextCode(TextCodeAccountExists).
			WithCode(goerrors.CodeConflict)
	}

	h.recordActivity(ctx, created)

	if event.OnResponse != nil {
		event.OnResponse(created)
	}

	return nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		Actor:      ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID:  account.ID.String(),
		Metadata:   map[string]any{"email": account.Email},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		normalizeLogger(h.logger).Warn("activity sink error during registration: %v", err)
	}
}
