package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/mock/gomock"

	"github.com/nazarhussain/portfolio-contact/internal/mail"
	"github.com/nazarhussain/portfolio-contact/internal/mocks"
	"github.com/nazarhussain/portfolio-contact/internal/ratelimit"
)

const validBody = `{"name":"A","email":"a@b.com","subject":"Hi","message":"Hello"}`

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testHandlerOpts struct {
	mailer mail.Mailer
	to     string
	policy ratelimit.WindowPolicy
	remote *ratelimit.RemoteLimiter
}

func setupTestHandler(t *testing.T, opts testHandlerOpts) *Handler {
	t.Helper()

	if opts.to == "" {
		opts.to = "owner@example.com"
	}
	if opts.policy == (ratelimit.WindowPolicy{}) {
		opts.policy = ratelimit.DefaultWindowPolicy()
	}

	now := time.Date(2024, time.June, 23, 10, 15, 30, 0, time.UTC)
	window := ratelimit.NewWindow(opts.policy, func() time.Time { return now })
	dispatcher := NewDispatcher(opts.mailer, "onboarding@resend.dev", opts.to, time.Second)

	return NewHandler(window, opts.remote, dispatcher, 64*1024)
}

func postContact(h http.Handler, body, clientIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP+", 10.0.0.1")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type: %q", got)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func assertInternalError(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if ok, _ := resp["ok"].(bool); ok {
		t.Fatalf("expected ok=false, got %v", resp)
	}
	if got := resp["error"]; got != "Internal Server Error" {
		t.Fatalf("expected generic error, got %v", got)
	}
}

func TestHandleContactSuccess(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

	rec := postContact(h, validBody, "203.0.113.7")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("expected ok=true in response, got %v", resp)
	}

	if mailer.calls() != 1 {
		t.Fatalf("expected one email, got %d", mailer.calls())
	}
	msg := mailer.sent[0]
	if got, want := msg.Subject, "[Portfolio Contact] Hi"; got != want {
		t.Fatalf("unexpected subject: got %q want %q", got, want)
	}
	if got, want := msg.ReplyTo, "a@b.com"; got != want {
		t.Fatalf("unexpected reply-to: got %q want %q", got, want)
	}
	if got, want := msg.To, "owner@example.com"; got != want {
		t.Fatalf("unexpected recipient: got %q want %q", got, want)
	}
	if got, want := msg.From, "onboarding@resend.dev"; got != want {
		t.Fatalf("unexpected sender: got %q want %q", got, want)
	}
	if !strings.Contains(msg.Text, "Hello") || !strings.Contains(msg.Text, "Name: A") {
		t.Fatalf("email body missing fields: %q", msg.Text)
	}
}

func TestHandleContactValidation(t *testing.T) {
	tt := []struct {
		desc  string
		body  string
		field string
	}{
		{desc: "missing name", body: `{"email":"a@b.com","subject":"Hi","message":"Hello"}`, field: "name"},
		{desc: "empty name", body: `{"name":"","email":"a@b.com","subject":"Hi","message":"Hello"}`, field: "name"},
		{desc: "missing email", body: `{"name":"A","subject":"Hi","message":"Hello"}`, field: "email"},
		{desc: "malformed email", body: `{"name":"A","email":"not-an-email","subject":"Hi","message":"Hello"}`, field: "email"},
		{desc: "missing subject", body: `{"name":"A","email":"a@b.com","message":"Hello"}`, field: "subject"},
		{desc: "empty message", body: `{"name":"A","email":"a@b.com","subject":"Hi","message":""}`, field: "message"},
		{desc: "message too long", body: `{"name":"A","email":"a@b.com","subject":"Hi","message":"` + strings.Repeat("x", 5001) + `"}`, field: "message"},
		{desc: "name not a string", body: `{"name":42,"email":"a@b.com","subject":"Hi","message":"Hello"}`, field: "name"},
		{desc: "website not a string", body: `{"name":"A","email":"a@b.com","subject":"Hi","message":"Hello","website":true}`, field: "website"},
		{desc: "malformed json", body: `{"name":`},
		{desc: "array payload", body: `[1,2,3]`},
		{desc: "null payload", body: `null`},
		{desc: "empty payload", body: ``},
	}

	for _, ts := range tt {
		t.Run(ts.desc, func(t *testing.T) {
			mailer := &recordingMailer{}
			h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

			rec := postContact(h, ts.body, "203.0.113.7")

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			resp := decodeBody(t, rec)
			if ok, _ := resp["ok"].(bool); ok {
				t.Fatalf("expected ok=false, got %v", resp)
			}
			errs, _ := resp["errors"].(map[string]any)
			if errs == nil {
				t.Fatalf("expected error detail, got %v", resp)
			}
			fieldErrs, _ := errs["fieldErrors"].(map[string]any)
			formErrs, _ := errs["formErrors"].([]any)
			if ts.field != "" {
				if _, ok := fieldErrs[ts.field]; !ok {
					t.Fatalf("expected error for field %q, got %v", ts.field, errs)
				}
			} else if len(formErrs) == 0 {
				t.Fatalf("expected form errors, got %v", errs)
			}
			if mailer.calls() != 0 {
				t.Fatalf("expected no email, got %d", mailer.calls())
			}
		})
	}
}

func TestHandleContactMessageAtLimit(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

	// 5000 characters, more than 5000 bytes
	body := `{"name":"A","email":"a@b.com","subject":"Hi","message":"` + strings.Repeat("é", 5000) + `"}`
	rec := postContact(h, body, "203.0.113.7")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if mailer.calls() != 1 {
		t.Fatalf("expected one email, got %d", mailer.calls())
	}
}

func TestHandleContactHoneypot(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

	body := `{"name":"A","email":"a@b.com","subject":"Hi","message":"Hello","website":"  http://spam.example  "}`

	// honeypot hits never reach the rate limiter
	for i := 0; i < 10; i++ {
		rec := postContact(h, body, "203.0.113.7")
		if rec.Code != http.StatusOK {
			t.Fatalf("honeypot request %d expected 200, got %d", i, rec.Code)
		}
		if resp := decodeBody(t, rec); resp["ok"] != true {
			t.Fatalf("expected ok=true, got %v", resp)
		}
	}
	if mailer.calls() != 0 {
		t.Fatalf("expected no email for honeypot, got %d", mailer.calls())
	}

	if rec := postContact(h, validBody, "203.0.113.7"); rec.Code != http.StatusOK {
		t.Fatalf("genuine request after honeypot hits expected 200, got %d", rec.Code)
	}
	if mailer.calls() != 1 {
		t.Fatalf("expected one email, got %d", mailer.calls())
	}
}

func TestHandleContactBlankWebsiteIsNotHoneypot(t *testing.T) {
	for _, website := range []string{`"   "`, `""`, `null`} {
		mailer := &recordingMailer{}
		h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

		body := `{"name":"A","email":"a@b.com","subject":"Hi","message":"Hello","website":` + website + `}`
		if rec := postContact(h, body, "203.0.113.7"); rec.Code != http.StatusOK {
			t.Fatalf("website=%s expected 200, got %d", website, rec.Code)
		}
		if mailer.calls() != 1 {
			t.Fatalf("website=%s expected one email, got %d", website, mailer.calls())
		}
	}
}

func TestHandleContactRateLimited(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

	for i := 0; i < 3; i++ {
		if rec := postContact(h, validBody, "203.0.113.7"); rec.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := postContact(h, validBody, "203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	if resp := decodeBody(t, rec); resp["error"] != "Too many requests. Please try again later." {
		t.Fatalf("unexpected body: %v", resp)
	}
	if mailer.calls() != 3 {
		t.Fatalf("expected three emails, got %d", mailer.calls())
	}

	// other clients are unaffected
	if rec := postContact(h, validBody, "198.51.100.2"); rec.Code != http.StatusOK {
		t.Fatalf("other client expected 200, got %d", rec.Code)
	}
}

func TestHandleContactWithoutClientIDSkipsRateLimit(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

	for i := 0; i < 10; i++ {
		if rec := postContact(h, validBody, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, rec.Code)
		}
	}
	if mailer.calls() != 10 {
		t.Fatalf("expected ten emails, got %d", mailer.calls())
	}
}

func TestHandleContactRemoteRateLimited(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{
		mailer: mailer,
		policy: ratelimit.WindowPolicy{Window: time.Minute, ShortWindow: 10 * time.Second, ShortLimit: 100},
		remote: ratelimit.NewRemoteLimiter(ratelimit.NewRedisCounter(client), ratelimit.DefaultCounterPolicy(), nil),
	})

	for i := 0; i < 5; i++ {
		if rec := postContact(h, validBody, "203.0.113.7"); rec.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := postContact(h, validBody, "203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth request expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	if mailer.calls() != 5 {
		t.Fatalf("expected five emails, got %d", mailer.calls())
	}

	server.FastForward(time.Minute)
	if rec := postContact(h, validBody, "203.0.113.7"); rec.Code != http.StatusOK {
		t.Fatalf("request after window expected 200, got %d", rec.Code)
	}
}

func TestHandleContactRemoteUnavailableFailsOpen(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{
		mailer: mailer,
		remote: ratelimit.NewRemoteLimiter(ratelimit.NewRedisCounter(client), ratelimit.DefaultCounterPolicy(), nil),
	})

	rec := postContact(h, validBody, "203.0.113.7")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if mailer.calls() != 1 {
		t.Fatalf("expected one email, got %d", mailer.calls())
	}
}

func TestHandleContactLocalLimitRunsBeforeRemote(t *testing.T) {
	ctrl := gomock.NewController(t)
	counter := mocks.NewMockCounter(ctrl)

	var count int64
	counter.EXPECT().Incr(gomock.Any(), "contact:203.0.113.7").
		DoAndReturn(func(ctx context.Context, key string) (int64, error) {
			count++
			return count, nil
		}).
		Times(3)
	counter.EXPECT().Expire(gomock.Any(), "contact:203.0.113.7", time.Minute).Return(nil).Times(1)

	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{
		mailer: mailer,
		remote: ratelimit.NewRemoteLimiter(counter, ratelimit.DefaultCounterPolicy(), nil),
	})

	for i := 0; i < 3; i++ {
		postContact(h, validBody, "203.0.113.7")
	}
	if rec := postContact(h, validBody, "203.0.113.7"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth request expected 429, got %d", rec.Code)
	}
}

func TestHandleContactMissingRecipient(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})
	h.dispatcher = NewDispatcher(mailer, "onboarding@resend.dev", "", time.Second)

	rec := postContact(h, validBody, "203.0.113.7")

	assertInternalError(t, rec)
	if strings.Contains(rec.Body.String(), "CONTACT_TO_EMAIL") {
		t.Fatalf("configuration detail leaked: %s", rec.Body.String())
	}
	if mailer.calls() != 0 {
		t.Fatalf("expected no email, got %d", mailer.calls())
	}
}

func TestHandleContactMailFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailer := mocks.NewMockMailer(ctrl)
	mailer.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(errors.New("resend: 422 invalid from address")).
		Times(1)

	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})
	rec := postContact(h, validBody, "203.0.113.7")

	assertInternalError(t, rec)
}

func TestHandleContactPanicRecovered(t *testing.T) {
	mailer := mail.MailerFunc(func(ctx context.Context, msg mail.Message) error {
		panic("unexpected")
	})
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

	rec := postContact(h, validBody, "203.0.113.7")

	assertInternalError(t, rec)
}

func TestHandleContactMethodNotAllowed(t *testing.T) {
	methods := []string{
		http.MethodGet,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
		http.MethodHead,
	}

	for _, method := range methods {
		mailer := &recordingMailer{}
		h := setupTestHandler(t, testHandlerOpts{mailer: mailer})

		req := httptest.NewRequest(method, "/api/contact", strings.NewReader(validBody))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s expected 405, got %d", method, rec.Code)
		}
		if got := rec.Header().Get("Allow"); got != "POST" {
			t.Fatalf("%s expected Allow: POST, got %q", method, got)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Fatalf("%s unexpected content type: %q", method, got)
		}
		if mailer.calls() != 0 {
			t.Fatalf("%s expected no email", method)
		}
	}
}

func TestHandleContactPayloadTooLarge(t *testing.T) {
	mailer := &recordingMailer{}
	h := setupTestHandler(t, testHandlerOpts{mailer: mailer})
	h.maxBodyBytes = 32

	rec := postContact(h, validBody, "203.0.113.7")

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["error"] != "Payload Too Large" {
		t.Fatalf("unexpected body: %v", resp)
	}
	if mailer.calls() != 0 {
		t.Fatalf("expected no email, got %d", mailer.calls())
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); !strings.Contains(got, "ok") {
		t.Fatalf("unexpected body: %q", got)
	}
}
