package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

type SMTPOptions struct {
	Host string
	Port int
	User string
	Pass string
	SSL  bool
}

type smtpMailer struct {
	opts SMTPOptions
	// send is swapped in tests to avoid dialing a server.
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSMTPMailer sends through an SMTP relay, over implicit TLS when opts.SSL
// is set and STARTTLS-capable plain SMTP otherwise.
func NewSMTPMailer(opts SMTPOptions) Mailer {
	m := &smtpMailer{opts: opts}
	if opts.SSL {
		m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.SendWithTLS(addr, auth, &tls.Config{ServerName: opts.Host})
		}
	} else {
		m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		}
	}
	return m
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	// net/smtp has no context support; honour a cancellation that already happened.
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.opts.Host, strconv.Itoa(m.opts.Port))
	var auth smtp.Auth
	if m.opts.User != "" {
		auth = smtp.PlainAuth("", m.opts.User, m.opts.Pass, m.opts.Host)
	}

	if err := m.send(toEmail(msg), addr, auth); err != nil {
		return fmt.Errorf("smtp send via %s: %w", addr, err)
	}
	return nil
}

func toEmail(msg Message) *email.Email {
	e := email.NewEmail()
	e.From = msg.From
	e.To = []string{msg.To}
	if msg.ReplyTo != "" {
		e.ReplyTo = []string{msg.ReplyTo}
	}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	return e
}
