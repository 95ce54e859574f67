package ratelimit

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// WindowPolicy configures the in-process guard. Every check is remembered for
// Window; a check is denied when more than ShortLimit checks fall inside the
// trailing ShortWindow.
type WindowPolicy struct {
	Window      time.Duration
	ShortWindow time.Duration
	ShortLimit  int
}

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		Window:      60 * time.Second,
		ShortWindow: 10 * time.Second,
		ShortLimit:  3,
	}
}

// Window is a per-process sliding window log keyed by client id. It is not
// shared between instances.
type Window struct {
	policy WindowPolicy
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewWindow initializes an empty store.
func NewWindow(policy WindowPolicy, now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{
		policy: policy,
		now:    now,
		hits:   map[string][]time.Time{},
	}
}

// Check records an attempt for key and reports whether it is allowed. Denied
// attempts are recorded too.
func (w *Window) Check(key string) *Result {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	recent := lo.Filter(w.hits[key], func(ts time.Time, _ int) bool {
		return now.Sub(ts) < w.policy.Window
	})
	recent = append(recent, now)
	w.hits[key] = recent

	short := lo.CountBy(recent, func(ts time.Time) bool {
		return now.Sub(ts) < w.policy.ShortWindow
	})

	state := Allow
	if short > w.policy.ShortLimit {
		state = Deny
	}

	return &Result{
		State:         state,
		TotalRequests: uint64(short),
		ExpiresAt:     now.Add(w.policy.ShortWindow),
	}
}

// Sweep drops keys whose attempts have all aged out of the window and
// returns how many were removed.
func (w *Window) Sweep() int {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for key, hits := range w.hits {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= w.policy.Window {
			delete(w.hits, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// Reset forgets every key.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hits = map[string][]time.Time{}
}
