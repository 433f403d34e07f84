package auth

import (
	"context"

	"github.com/goliatone/go-print"
)

// ResetNotifierFunc adapts a function to the ResetNotifier interface.
type ResetNotifierFunc func(ctx context.Context, notification PasswordResetNotification) error

// SendPasswordReset implements ResetNotifier.
func (f ResetNotifierFunc) SendPasswordReset(ctx context.Context, notification PasswordResetNotification) error {
	if f == nil {
		return nil
	}
	return f(ctx, notification)
}

// LogNotifier writes reset notifications to the logger. It is the default
// when no delivery channel is configured.
type LogNotifier struct {
	logger Logger
}

var _ ResetNotifier = (*LogNotifier)(nil)

// NewLogNotifier returns a notifier that logs through logger
func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: normalizeLogger(logger)}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, notification PasswordResetNotification) error {
	payload := map[string]any{
		"to":         notification.Email,
		"account_id": notification.AccountID,
		"expires_at": notification.ExpiresAt,
		"token":      notification.Token,
	}
	n.logger.Info("password reset notification %s", print.MaybePrettyJSON(payload))
	return nil
}
