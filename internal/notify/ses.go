package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

const charset = "UTF-8"

type SESSender struct {
	svc  *ses.SES
	from string
}

func NewSESSender(cfg Config) (*SESSender, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &SESSender{svc: ses.New(sess), from: cfg.From}, nil
}

func (s *SESSender) Send(ctx context.Context, to string, msg Message) error {
	_, err := s.svc.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
			Body: &ses.Body{
				Html: &ses.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
				Text: &ses.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses.SendEmail: %w", err)
	}
	return nil
}
