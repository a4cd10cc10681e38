package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridSender(cfg Config) (*SendGridSender, error) {
	if cfg.Key == "" {
		return nil, errors.New("invalid SendGrid configuration")
	}
	return &SendGridSender{
		client:   sendgrid.NewSendClient(cfg.Key),
		from:     cfg.From,
		fromName: cfg.FromName,
	}, nil
}

func (s *SendGridSender) Send(ctx context.Context, to string, msg Message) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		msg.Subject,
		mail.NewEmail("", to),
		msg.Text,
		msg.HTML,
	)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid send: status code %d", response.StatusCode)
	}
	return nil
}
