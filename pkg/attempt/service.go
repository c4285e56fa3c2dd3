package attempt

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Annotation carries the location attributes attached to an attempt record.
type Annotation struct {
	Country string
	City    string
}

// Annotator resolves location attributes for an IP address. Implementations
// may consult an external database; failures are tolerated and the attempt is
// recorded without annotation.
type Annotator interface {
	Annotate(ctx context.Context, ipAddress string) (Annotation, error)
}

// Ledger provides the append-and-count operations over the attempt trail.
type Ledger struct {
	attemptRepository AttemptRepository
	annotator         Annotator
}

// LedgerOption configures optional collaborators on the Ledger
type LedgerOption func(*Ledger)

// WithAnnotator sets the location annotator used when recording attempts
func WithAnnotator(annotator Annotator) LedgerOption {
	return func(l *Ledger) {
		l.annotator = annotator
	}
}

// NewLedger creates a new attempt ledger service
func NewLedger(attemptRepository AttemptRepository, opts ...LedgerOption) *Ledger {
	ledger := &Ledger{
		attemptRepository: attemptRepository,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// Record appends one attempt to the ledger. The ledger assigns the ID and
// timestamp; callers supply only the observed request attributes. Annotation
// failures are logged and the attempt is recorded without location data.
func (l *Ledger) Record(ctx context.Context, params RecordParams) (LoginAttempt, error) {
	attempt := LoginAttempt{
		ID:            uuid.New(),
		AccountID:     params.AccountID,
		Username:      params.Username,
		IPAddress:     params.IPAddress,
		Fingerprint:   params.Fingerprint,
		UserAgent:     params.UserAgent,
		Success:       params.Success,
		FailureReason: params.FailureReason,
		AttemptedAt:   time.Now().UTC(),
	}

	if l.annotator != nil {
		annotation, err := l.annotator.Annotate(ctx, params.IPAddress)
		if err != nil {
			slog.Warn("Failed to annotate login attempt location", "err", err, "ip", params.IPAddress)
		} else {
			attempt.Country = annotation.Country
			attempt.City = annotation.City
		}
	}

	return l.attemptRepository.Record(ctx, attempt)
}

// CountFailures counts failed attempts for the identifier within the trailing
// window. The window slides with the clock, so an attempt that counted a
// moment ago may no longer count now.
func (l *Ledger) CountFailures(ctx context.Context, identifier string, kind IdentifierKind, window time.Duration) (int, error) {
	since := time.Now().UTC().Add(-window)
	return l.attemptRepository.CountFailuresSince(ctx, identifier, kind, since)
}

// ListRecent returns the newest attempts first for the administrative surface
func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]LoginAttempt, error) {
	return l.attemptRepository.ListRecent(ctx, limit)
}
