package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// State represents the result of rate limiting.
type State int64

const (
	Deny State = iota
	Allow
)

var stateStrings = map[State]string{
	Allow: "Allow",
	Deny:  "Deny",
}

func (s State) String() string {
	return stateStrings[s]
}

// Result is the outcome of a rate limit check.
type Result struct {
	State         State
	TotalRequests uint64
	ExpiresAt     time.Time
}

// ClientID returns the first address of the X-Forwarded-For chain, or ""
// when the header is missing. Callers skip rate limiting for "".
func ClientID(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
