// Package ratelimit provides per-client admission control for scan
// requests. Each client identity gets at most one admission per fixed
// window; further requests inside the window are denied outright rather
// than smoothed.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the minimum interval between admitted scans from the
// same client identity.
const DefaultWindow = 10 * time.Second

// evictMultiple controls how long an idle identity survives before the
// cleanup pass drops it, expressed in windows.
const evictMultiple = 5

// Limiter tracks the last admitted scan per client identity.
type Limiter struct {
	mu         sync.Mutex
	admitted   map[string]time.Time
	window     time.Duration
	evictAfter time.Duration
	now        func() time.Time
}

// New creates a limiter with the given admission window. A non-positive
// window falls back to DefaultWindow.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		admitted:   make(map[string]time.Time),
		window:     window,
		evictAfter: evictMultiple * window,
		now:        time.Now,
	}
}

// NewWithEviction creates a limiter with an explicit eviction horizon.
// A horizon shorter than the window would weaken the window invariant,
// so such values fall back to the derived default.
func NewWithEviction(window, evictAfter time.Duration) *Limiter {
	l := New(window)
	if evictAfter >= l.window {
		l.evictAfter = evictAfter
	}
	return l
}

// Admit reports whether a scan from clientID may proceed. The first
// request from an identity is admitted and recorded; subsequent requests
// are admitted only once the full window has elapsed since the last
// admission. Denials do not mutate state, so a burst cannot extend its
// own penalty. The check and the record happen under one lock, so two
// concurrent requests from the same client cannot both be admitted
// inside a single window.
func (l *Limiter) Admit(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.admitted[clientID]; ok && now.Sub(last) < l.window {
		return false
	}
	l.admitted[clientID] = now
	return true
}

// RetryAfter returns how long clientID must wait before its next request
// can be admitted. Zero means a request would be admitted now.
func (l *Limiter) RetryAfter(clientID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.admitted[clientID]
	if !ok {
		return 0
	}
	remaining := l.window - l.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Window returns the configured admission window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Cleanup removes identities whose last admission is older than the
// eviction horizon. Entries inside the horizon are kept so the window
// invariant is never weakened by eviction.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.evictAfter)
	for id, last := range l.admitted {
		if last.Before(cutoff) {
			delete(l.admitted, id)
		}
	}
}

// Start runs periodic cleanup until the context is canceled. It blocks,
// so callers run it in a goroutine.
func (l *Limiter) Start(ctx context.Context) {
	ticker := time.NewTicker(l.evictAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.admitted)
}
