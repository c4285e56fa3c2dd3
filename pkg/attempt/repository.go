package attempt

import (
	"context"
	"time"
)

// AttemptRepository defines the interface for attempt ledger storage. The
// ledger is append-only: there are deliberately no update or delete
// operations.
type AttemptRepository interface {
	// Record appends one attempt. It fails only when storage is
	// unavailable; that failure surfaces to the caller, never swallowed.
	Record(ctx context.Context, attempt LoginAttempt) (LoginAttempt, error)

	// CountFailuresSince counts failed attempts matching the identifier
	// with attempted_at at or after the threshold.
	CountFailuresSince(ctx context.Context, identifier string, kind IdentifierKind, since time.Time) (int, error)

	// ListRecent returns the newest attempts first, up to limit rows, for
	// the administrative listing surface.
	ListRecent(ctx context.Context, limit int) ([]LoginAttempt, error)
}
