package contact

import (
	"fmt"
	"strings"
	"time"

	"github.com/nazarhussain/portfolio-contact/env"
	"github.com/nazarhussain/portfolio-contact/internal/mail"
	"github.com/nazarhussain/portfolio-contact/internal/ratelimit"
)

/*
ENV-ONLY CONFIG (a .env file in the working directory is read when present):
  Server:
    LISTEN_ADDR (default ":3000")
    CONTACT_PATH (default "/api/contact")
    MAX_BODY_KB (default 64)
    LOG_LEVEL (debug|info|warn|error, default info)
    LOG_FORMAT (text|json, default text)

  Mail:
    CONTACT_TO_EMAIL              // recipient; requests fail with 500 while unset
    MAIL_FROM (default "onboarding@resend.dev")
    MAIL_PROVIDER (resend|smtp, default resend)
    MAIL_TIMEOUT (default 10s)
    RESEND_API_KEY
    SMTP_HOST, SMTP_PORT (default 587), SMTP_USER, SMTP_PASS, SMTP_SSL (default false)

  Remote rate limit (disabled while REDIS_URL is unset):
    REDIS_URL                     // redis:// or rediss://
    REDIS_TOKEN                   // overrides the URL password
    REDIS_TIMEOUT (default 2s)
    REMOTE_LIMIT (default 5), REMOTE_WINDOW (default 60s), REMOTE_KEY_PREFIX (default "contact:")

  Local rate limit:
    LOCAL_WINDOW (default 60s), LOCAL_SHORT_WINDOW (default 10s), LOCAL_SHORT_LIMIT (default 3)
    WINDOW_SWEEP_INTERVAL (default 1m)
*/

type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR,default=:3000"`
	ContactPath string `env:"CONTACT_PATH,default=/api/contact"`
	MaxBodyKB   int    `env:"MAX_BODY_KB,default=64"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFormat   string `env:"LOG_FORMAT,default=text"`

	ContactTo    string        `env:"CONTACT_TO_EMAIL"`
	MailFrom     string        `env:"MAIL_FROM,default=onboarding@resend.dev"`
	MailProvider string        `env:"MAIL_PROVIDER,default=resend"`
	MailTimeout  time.Duration `env:"MAIL_TIMEOUT,default=10s"`
	ResendAPIKey string        `env:"RESEND_API_KEY"`
	SMTP         SmtpCfg

	RedisURL        string        `env:"REDIS_URL"`
	RedisToken      string        `env:"REDIS_TOKEN"`
	RedisTimeout    time.Duration `env:"REDIS_TIMEOUT,default=2s"`
	RemoteLimit     int           `env:"REMOTE_LIMIT,default=5"`
	RemoteWindow    time.Duration `env:"REMOTE_WINDOW,default=60s"`
	RemoteKeyPrefix string        `env:"REMOTE_KEY_PREFIX,default=contact:"`

	LocalWindow      time.Duration `env:"LOCAL_WINDOW,default=60s"`
	LocalShortWindow time.Duration `env:"LOCAL_SHORT_WINDOW,default=10s"`
	LocalShortLimit  int           `env:"LOCAL_SHORT_LIMIT,default=3"`
	SweepInterval    time.Duration `env:"WINDOW_SWEEP_INTERVAL,default=1m"`
}

type SmtpCfg struct {
	Host string `env:"SMTP_HOST"`
	Port int    `env:"SMTP_PORT,default=587"`
	User string `env:"SMTP_USER"`
	Pass string `env:"SMTP_PASS"`
	SSL  bool   `env:"SMTP_SSL,default=false"`
}

// LoadConfig reads the configuration from the environment and an optional
// .env file.
func LoadConfig() (*Config, error) {
	var c Config
	if err := env.Load(&c); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the service cannot start with. A missing
// CONTACT_TO_EMAIL is not one of them.
func (c *Config) Validate() error {
	switch strings.ToLower(c.MailProvider) {
	case mail.ProviderResend, mail.ProviderSMTP:
	default:
		return fmt.Errorf("config error: MAIL_PROVIDER must be %q or %q, got %q", mail.ProviderResend, mail.ProviderSMTP, c.MailProvider)
	}
	if !strings.HasPrefix(c.ContactPath, "/") {
		return fmt.Errorf("config error: CONTACT_PATH must start with /, got %q", c.ContactPath)
	}
	if c.MaxBodyKB <= 0 {
		return fmt.Errorf("config error: MAX_BODY_KB must be positive, got %d", c.MaxBodyKB)
	}
	if c.LocalShortLimit < 0 || c.RemoteLimit < 0 {
		return fmt.Errorf("config error: rate limits must not be negative")
	}
	if c.LocalWindow < c.LocalShortWindow {
		return fmt.Errorf("config error: LOCAL_WINDOW (%s) must not be shorter than LOCAL_SHORT_WINDOW (%s)", c.LocalWindow, c.LocalShortWindow)
	}
	return nil
}

// RemoteEnabled reports whether the shared counter layer is configured.
func (c *Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}

func (c *Config) WindowPolicy() ratelimit.WindowPolicy {
	return ratelimit.WindowPolicy{
		Window:      c.LocalWindow,
		ShortWindow: c.LocalShortWindow,
		ShortLimit:  c.LocalShortLimit,
	}
}

func (c *Config) CounterPolicy() ratelimit.CounterPolicy {
	return ratelimit.CounterPolicy{
		Limit:     int64(c.RemoteLimit),
		TTL:       c.RemoteWindow,
		KeyPrefix: c.RemoteKeyPrefix,
	}
}

func (c *Config) MailOptions() mail.Options {
	return mail.Options{
		Provider:     c.MailProvider,
		ResendAPIKey: c.ResendAPIKey,
		SMTP: mail.SMTPOptions{
			Host: c.SMTP.Host,
			Port: c.SMTP.Port,
			User: c.SMTP.User,
			Pass: c.SMTP.Pass,
			SSL:  c.SMTP.SSL,
		},
	}
}

func (c *Config) MaxBodyBytes() int64 {
	return int64(c.MaxBodyKB) * 1024
}
