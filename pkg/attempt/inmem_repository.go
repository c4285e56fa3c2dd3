package attempt

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// InMemAttemptRepository implements AttemptRepository using an in-memory slice
type InMemAttemptRepository struct {
	attempts []LoginAttempt
	mu       sync.Mutex
}

// NewInMemAttemptRepository creates a new in-memory attempt repository
func NewInMemAttemptRepository() *InMemAttemptRepository {
	return &InMemAttemptRepository{}
}

// Record appends one attempt
func (r *InMemAttemptRepository) Record(ctx context.Context, attempt LoginAttempt) (LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = append(r.attempts, attempt)
	slog.Debug("Login attempt recorded", "username", attempt.Username, "ip", attempt.IPAddress, "success", attempt.Success)
	return attempt, nil
}

// CountFailuresSince counts failed attempts for the identifier within the window
func (r *InMemAttemptRepository) CountFailuresSince(ctx context.Context, identifier string, kind IdentifierKind, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.attempts {
		if a.Success || a.AttemptedAt.Before(since) {
			continue
		}
		switch kind {
		case IdentifierIP:
			if a.IPAddress == identifier {
				count++
			}
		case IdentifierUsername:
			if a.Username == identifier {
				count++
			}
		}
	}

	slog.Debug("Counted failed attempts", "identifier", identifier, "kind", kind, "count", count)
	return count, nil
}

// ListRecent returns the newest attempts first, up to limit rows
func (r *InMemAttemptRepository) ListRecent(ctx context.Context, limit int) ([]LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempts := make([]LoginAttempt, len(r.attempts))
	copy(attempts, r.attempts)

	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].AttemptedAt.After(attempts[j].AttemptedAt)
	})

	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}
