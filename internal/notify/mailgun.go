package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"
)

type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunSender(cfg Config) (*MailgunSender, error) {
	if cfg.Key == "" || cfg.Domain == "" {
		return nil, errors.New("invalid Mailgun configuration")
	}
	return &MailgunSender{mg: mailgun.NewMailgun(cfg.Domain, cfg.Key), from: cfg.From}, nil
}

func (s *MailgunSender) Send(ctx context.Context, to string, msg Message) error {
	message := s.mg.NewMessage(s.from, msg.Subject, msg.Text, to)
	message.SetHtml(msg.HTML)

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	slog.DebugContext(ctx, "rocrate_exporter.notify.mailgun_queued", slog.String("message_id", id))
	return nil
}
