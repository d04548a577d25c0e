package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// Notifier delivers the password-reset link. Delivery is fire-and-forget:
// the workflow logs failures and never surfaces them to the caller.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogNotifier writes the reset link to the log instead of sending mail.
// It stands in for a real delivery provider in development and tests.
type LogNotifier struct {
	log     *slog.Logger
	baseURL string
}

// NewLogNotifier constructs a LogNotifier. baseURL is the frontend origin the
// reset link points at, e.g. "https://app.example.com".
func NewLogNotifier(log *slog.Logger, baseURL string) LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return LogNotifier{log: log, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// SendPasswordReset logs the reset link and reports success.
func (n LogNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	link := n.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	n.log.Info("notify.password_reset",
		"email", email,
		"reset_url", link,
	)
	return nil
}
