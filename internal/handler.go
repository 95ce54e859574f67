package contact

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/nazarhussain/portfolio-contact/internal/logging"
	"github.com/nazarhussain/portfolio-contact/internal/ratelimit"
)

var ErrBodyTooLarge = errors.New("request body too large")

// Handler serves the contact form endpoint. Its rate limit state is owned by
// the injected Window, so separate handlers never share counts.
type Handler struct {
	window       *ratelimit.Window
	remote       *ratelimit.RemoteLimiter
	dispatcher   *Dispatcher
	maxBodyBytes int64
}

// NewHandler wires the pipeline together. remote may be nil, which disables
// the shared counter layer.
func NewHandler(window *ratelimit.Window, remote *ratelimit.RemoteLimiter, dispatcher *Dispatcher, maxBodyBytes int64) *Handler {
	return &Handler{
		window:       window,
		remote:       remote,
		dispatcher:   dispatcher,
		maxBodyBytes: maxBodyBytes,
	}
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.LoggerFromContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("contact handler panic",
				"err", rec,
				"type", fmt.Sprintf("%T", rec),
				"stack", string(debug.Stack()),
			)
			writeInternalError(w)
		}
	}()

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	body, err := readBody(r, h.maxBodyBytes)
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		writePayloadTooLarge(w)
		return
	case err != nil:
		logger.Debug("read body failed", "err", err)
		verr := newValidationError()
		verr.addForm("Unable to read request body")
		writeValidationError(w, verr)
		return
	}

	sub, err := ParseSubmission(body)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			logger.Debug("submission rejected", "fields", verr.Fields(), "form_errors", verr.FormErrors)
			writeValidationError(w, verr)
			return
		}
		logger.Error("contact validation error", "err", err)
		writeInternalError(w)
		return
	}

	// Bots get the normal success answer and nothing else happens.
	if sub.IsHoneypot() {
		logger.Debug("honeypot triggered")
		writeOK(w)
		return
	}

	if clientID := ratelimit.ClientID(r); clientID != "" {
		logger = logger.With("client", clientID)

		if res := h.window.Check(clientID); res.State == ratelimit.Deny {
			logger.Info("rate limited", "layer", "local", "requests", res.TotalRequests)
			writeTooManyRequests(w)
			return
		}

		if h.remote != nil {
			res, err := h.remote.Execute(ctx, clientID)
			switch {
			case err != nil:
				// fail open
				logger.Warn("contact rate-limit error", "err", err)
			case res.State == ratelimit.Deny:
				logger.Info("rate limited", "layer", "remote", "requests", res.TotalRequests)
				writeTooManyRequests(w)
				return
			}
		}
	}

	if err := h.dispatcher.Dispatch(ctx, sub); err != nil {
		logger.Error("contact email error", "err", err)
		writeInternalError(w)
		return
	}

	logger.Info("contact email sent")
	writeOK(w)
}

// readBody reads at most limit bytes and reports ErrBodyTooLarge beyond that.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
