// Package notification delivers password reset tokens by email through
// Postmark.
package notification

import (
	"context"
	"net/url"
	"strings"

	"github.com/flosch/pongo2/v6"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
	"github.com/mrz1836/postmark"
)

// TagPasswordReset is the Postmark tag attached to reset emails.
const TagPasswordReset = "password-reset"

const defaultSubject = "Reset your password"

const defaultHTMLBody = `<p>Hi {{ first_name|default:"there" }},</p>
<p>Use the link below to choose a new password. It expires at {{ expires_at|date:"2006-01-02 15:04 MST" }}.</p>
<p><a href="{{ reset_url }}">Reset password</a></p>
<p>If you did not ask for this you can ignore this email.</p>`

const defaultTextBody = `Hi {{ first_name|default:"there" }},

Use the link below to choose a new password. It expires at {{ expires_at|date:"2006-01-02 15:04 MST" }}.

{{ reset_url|safe }}

If you did not ask for this you can ignore this email.`

// Sender is the subset of the Postmark client used to send mail.
type Sender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Config configures the Postmark notifier.
type Config struct {
	ServerToken  string
	AccountToken string
	From         string
	// ResetURL is the page that accepts the token. The token is appended
	// as the "token" query parameter.
	ResetURL string
	Subject  string
}

// Validate checks the notifier configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServerToken, validation.Required),
		validation.Field(&c.From, validation.Required, is.Email),
		validation.Field(&c.ResetURL, validation.Required, is.URL),
	)
}

// PostmarkNotifier implements auth.ResetNotifier.
type PostmarkNotifier struct {
	sender   Sender
	config   Config
	htmlBody *pongo2.Template
	textBody *pongo2.Template
	logger   auth.Logger
}

var _ auth.ResetNotifier = (*PostmarkNotifier)(nil)

// NewPostmarkNotifier builds a notifier backed by the Postmark API.
func NewPostmarkNotifier(cfg Config) (*PostmarkNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid postmark configuration").
			WithTextCode(auth.TextCodeBadConfiguration)
	}

	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}

	htmlBody, err := pongo2.FromString(defaultHTMLBody)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse html template")
	}

	textBody, err := pongo2.FromString(defaultTextBody)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse text template")
	}

	return &PostmarkNotifier{
		sender:   postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config:   cfg,
		htmlBody: htmlBody,
		textBody: textBody,
	}, nil
}

// WithSender replaces the Postmark client.
func (n *PostmarkNotifier) WithSender(sender Sender) *PostmarkNotifier {
	if sender != nil {
		n.sender = sender
	}
	return n
}

// WithLogger sets the logger.
func (n *PostmarkNotifier) WithLogger(logger auth.Logger) *PostmarkNotifier {
	n.logger = logger
	return n
}

// SendPasswordReset emails the reset link to the account holder.
func (n *PostmarkNotifier) SendPasswordReset(ctx context.Context, notification auth.PasswordResetNotification) error {
	if strings.TrimSpace(notification.Email) == "" {
		return goerrors.New("notification email is required", goerrors.CategoryBadInput)
	}

	link, err := n.resetLink(notification.Token)
	if err != nil {
		return err
	}

	data := pongo2.Context{
		"first_name": notification.FirstName,
		"reset_url":  link,
		"expires_at": notification.ExpiresAt,
	}

	html, err := n.htmlBody.Execute(data)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render html body")
	}

	text, err := n.textBody.Execute(data)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render text body")
	}

	resp, err := n.sender.SendEmail(ctx, postmark.Email{
		From:       n.config.From,
		To:         notification.Email,
		Subject:    n.config.Subject,
		Tag:        TagPasswordReset,
		HTMLBody:   html,
		TextBody:   text,
		TrackOpens: false,
	})
	if err != nil {
		n.logError(notification, err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send password reset email")
	}

	if resp.ErrorCode > 0 {
		err := goerrors.New(resp.Message, goerrors.CategoryInternal).WithMetadata(map[string]any{
			"postmark_error_code": resp.ErrorCode,
		})
		n.logError(notification, err)
		return err
	}

	if n.logger != nil {
		n.logger.Debug("password reset email sent", "account_id", notification.AccountID, "message_id", resp.MessageID)
	}

	return nil
}

func (n *PostmarkNotifier) resetLink(token string) (string, error) {
	u, err := url.Parse(n.config.ResetURL)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "invalid reset url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (n *PostmarkNotifier) logError(notification auth.PasswordResetNotification, err error) {
	if n.logger != nil {
		n.logger.Error("password reset email failed", "account_id", notification.AccountID, "error", err)
	}
}
