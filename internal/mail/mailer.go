//go:generate go run go.uber.org/mock/mockgen -source=mailer.go -destination=../mocks/mock_mailer.go -package=mocks
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
)

var ErrUnknownProvider = errors.New("unknown mail provider")

// Message is the provider-neutral shape of one outgoing email.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Text    string
}

// Mailer delivers a single message. Implementations make exactly one attempt.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a plain function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Message) error

func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Options collects the credentials of every supported provider; only the
// ones belonging to Provider are read.
type Options struct {
	Provider     string
	ResendAPIKey string
	SMTP         SMTPOptions
}

// New builds the Mailer selected by opts.Provider.
func New(opts Options) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderResend, "":
		return NewResendMailer(opts.ResendAPIKey), nil
	case ProviderSMTP:
		if opts.SMTP.Host == "" {
			return nil, errors.New("smtp mailer: SMTP_HOST is required")
		}
		return NewSMTPMailer(opts.SMTP), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
