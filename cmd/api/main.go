package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	contact "github.com/nazarhussain/portfolio-contact/internal"
	"github.com/nazarhussain/portfolio-contact/internal/logging"
	"github.com/nazarhussain/portfolio-contact/internal/mail"
	"github.com/nazarhussain/portfolio-contact/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := contact.LoadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, config.LogLevel, config.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer, err := mail.New(config.MailOptions())
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	if config.ContactTo == "" {
		logger.Warn("CONTACT_TO_EMAIL is not set; submissions will fail with 500")
	}
	dispatcher := contact.NewDispatcher(mailer, config.MailFrom, config.ContactTo, config.MailTimeout)

	window := ratelimit.NewWindow(config.WindowPolicy(), time.Now)
	go sweepWindow(ctx, logger, window, config.SweepInterval)

	remote, closeRemote := newRemoteLimiter(logger, config)
	defer closeRemote()

	handler := contact.NewRouter(logger, config.ContactPath,
		contact.NewHandler(window, remote, dispatcher, config.MaxBodyBytes()))

	s := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("contact api listening",
			"addr", config.ListenAddr,
			"path", config.ContactPath,
			"mail_provider", config.MailProvider,
			"remote_rate_limit", remote != nil,
		)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// newRemoteLimiter returns nil when REDIS_URL is unset or unusable; the
// local window still applies in that case.
func newRemoteLimiter(logger *slog.Logger, config *contact.Config) (*ratelimit.RemoteLimiter, func()) {
	noop := func() {}
	if !config.RemoteEnabled() {
		return nil, noop
	}

	opts, err := ratelimit.RedisOptions(config.RedisURL, config.RedisToken, config.RedisTimeout)
	if err != nil {
		logger.Error("remote rate limit disabled", "err", err)
		return nil, noop
	}

	client := redis.NewClient(opts)
	counter := ratelimit.NewRedisCounter(client)
	return ratelimit.NewRemoteLimiter(counter, config.CounterPolicy(), time.Now), func() {
		_ = client.Close()
	}
}

func sweepWindow(ctx context.Context, logger *slog.Logger, window *ratelimit.Window, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := window.Sweep(); n > 0 {
				logger.Debug("rate window swept", "removed", n, "tracked", window.Len())
			}
		}
	}
}
