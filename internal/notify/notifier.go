package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	apperrors "github.com/webitel/rocrate-exporter/internal/errors"
)

const (
	defaultRetries = 2
	defaultBackoff = 500 * time.Millisecond
)

// Notifier composes result emails and delivers them with bounded retries.
type Notifier struct {
	sender  Sender
	retries uint64
	backoff time.Duration
}

type Option func(*Notifier)

// WithRetries sets how many times a failed send is repeated.
func WithRetries(retries uint64, backoff time.Duration) Option {
	return func(n *Notifier) {
		n.retries = retries
		n.backoff = backoff
	}
}

func NewNotifier(sender Sender, opts ...Option) *Notifier {
	n := &Notifier{sender: sender, retries: defaultRetries, backoff: defaultBackoff}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SendResult delivers the job outcome to p.To. Final failures are returned as
// *errors.NotificationError.
func (n *Notifier) SendResult(ctx context.Context, p Params) error {
	msg, err := Compose(p)
	if err != nil {
		return &apperrors.NotificationError{To: p.To, Cause: err}
	}

	b := retry.WithMaxRetries(n.retries, retry.NewExponential(n.backoff))

	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := n.sender.Send(ctx, p.To, msg); err != nil {
			slog.WarnContext(ctx, "rocrate_exporter.notify.send_attempt_failed",
				slog.String("to", p.To),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return &apperrors.NotificationError{To: p.To, Cause: fmt.Errorf("after %d attempts: %w", attempt, err)}
	}
	return nil
}
