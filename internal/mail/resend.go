package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/nazarhussain/portfolio-contact/internal/logging"
)

type resendMailer struct {
	client *resend.Client
}

// NewResendMailer sends through the Resend HTTP API.
func NewResendMailer(apiKey string) Mailer {
	return &resendMailer{client: resend.NewClient(apiKey)}
}

func newResendMailerWithClient(client *resend.Client) *resendMailer {
	return &resendMailer{client: client}
}

func (m *resendMailer) Send(ctx context.Context, msg Message) error {
	sent, err := m.client.Emails.SendWithContext(ctx, toResendRequest(msg))
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	logging.LoggerFromContext(ctx).Debug("resend accepted message", "id", sent.Id)
	return nil
}

func toResendRequest(msg Message) *resend.SendEmailRequest {
	return &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Text:    msg.Text,
	}
}
