package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nazarhussain/portfolio-contact/internal/mail"
)

const subjectPrefix = "[Portfolio Contact] "

var ErrMissingRecipient = errors.New("CONTACT_TO_EMAIL missing")

// Dispatcher turns accepted submissions into emails for the site owner.
type Dispatcher struct {
	mailer  mail.Mailer
	from    string
	to      string
	timeout time.Duration
}

func NewDispatcher(mailer mail.Mailer, from, to string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		from:    from,
		to:      strings.TrimSpace(to),
		timeout: timeout,
	}
}

// Dispatch sends one email for sub. It returns ErrMissingRecipient without
// touching the mailer when no recipient is configured. Failed sends are not
// retried.
func (d *Dispatcher) Dispatch(ctx context.Context, sub *Submission) error {
	if d.to == "" {
		return ErrMissingRecipient
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.mailer.Send(ctx, d.compose(sub)); err != nil {
		return fmt.Errorf("dispatch contact email: %w", err)
	}
	return nil
}

func (d *Dispatcher) compose(sub *Submission) mail.Message {
	body := strings.Join([]string{
		"Name: " + sub.Name,
		"Email: " + sub.Email,
		"Subject: " + sub.Subject,
		"",
		"Message:",
		sub.Message,
	}, "\n")

	return mail.Message{
		From:    d.from,
		To:      d.to,
		ReplyTo: sub.Email,
		Subject: subjectPrefix + sub.Subject,
		Text:    body,
	}
}
