// Package throttle provides request throttling for the authentication
// surface: a fixed-window limiter (in-memory or Redis backed) and a lockout
// policy driven by the login attempt ledger.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Limiter checks whether a request for the given key should be allowed within
// the current window. Remaining reports how many attempts are left before the
// limit trips.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}

type windowEntry struct {
	count     int
	expiresAt time.Time
}

// InMemLimiter implements a fixed-window limiter with an in-memory counter
// map. Windows expire lazily on access and via a background sweep.
type InMemLimiter struct {
	maxAttempts int
	window      time.Duration
	entries     map[string]*windowEntry
	mu          sync.Mutex
}

// NewInMemLimiter creates an in-memory fixed-window limiter
// maxAttempts: attempts allowed per key within one window
// window: window duration; the counter resets when it elapses
func NewInMemLimiter(maxAttempts int, window time.Duration) *InMemLimiter {
	l := &InMemLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		entries:     make(map[string]*windowEntry),
	}
	go l.cleanup()
	return l
}

// Allow checks and consumes one attempt for the key
func (l *InMemLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, exists := l.entries[key]
	if !exists || now.After(entry.expiresAt) {
		l.entries[key] = &windowEntry{count: 1, expiresAt: now.Add(l.window)}
		return true, l.maxAttempts - 1, nil
	}

	if entry.count >= l.maxAttempts {
		return false, 0, nil
	}

	entry.count++
	return true, l.maxAttempts - entry.count, nil
}

// Reset clears the window for a specific key
func (l *InMemLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// cleanup periodically removes expired windows
func (l *InMemLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, entry := range l.entries {
			if now.After(entry.expiresAt) {
				delete(l.entries, key)
			}
		}
		l.mu.Unlock()
	}
}
