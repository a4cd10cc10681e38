package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Sender delivers one composed message.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

type Provider string

const (
	ProviderSES      Provider = "ses"
	ProviderSendGrid Provider = "sendgrid"
	ProviderMailgun  Provider = "mailgun"
	ProviderLog      Provider = "log"
)

type Config struct {
	Provider Provider
	From     string
	FromName string
	Region   string
	Key      string
	Domain   string
}

// NewSender creates the Sender for cfg.Provider.
func NewSender(cfg Config) (Sender, error) {
	if cfg.Provider != ProviderLog && cfg.Provider != "" && cfg.From == "" {
		return nil, fmt.Errorf("email sender %q: from address is required", cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderSES:
		return NewSESSender(cfg)
	case ProviderSendGrid:
		return NewSendGridSender(cfg)
	case ProviderMailgun:
		return NewMailgunSender(cfg)
	case ProviderLog, "":
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider: %q", cfg.Provider)
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to string, msg Message) error {
	slog.InfoContext(ctx, "rocrate_exporter.notify.email_logged",
		slog.String("to", to),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}
