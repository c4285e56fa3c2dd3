package throttle

import (
	"context"
	"time"

	"github.com/vaxguard/device-trust/pkg/attempt"
)

// LockoutPolicy decides whether an identifier is locked out based on the
// failed attempts recorded in the ledger. The count is recomputed from the
// trailing window on every check, so a lockout expires as old failures slide
// out of the window.
type LockoutPolicy struct {
	ledger            *attempt.Ledger
	maxFailedAttempts int
	window            time.Duration
}

// NewLockoutPolicy creates a lockout policy over the attempt ledger
// maxFailedAttempts: failures within the window that trigger a lockout
// window: trailing duration failures are counted over
func NewLockoutPolicy(ledger *attempt.Ledger, maxFailedAttempts int, window time.Duration) *LockoutPolicy {
	return &LockoutPolicy{
		ledger:            ledger,
		maxFailedAttempts: maxFailedAttempts,
		window:            window,
	}
}

// Locked reports whether the identifier has reached the failure threshold
// within the trailing window
func (p *LockoutPolicy) Locked(ctx context.Context, identifier string, kind attempt.IdentifierKind) (bool, error) {
	count, err := p.ledger.CountFailures(ctx, identifier, kind, p.window)
	if err != nil {
		return false, err
	}
	return count >= p.maxFailedAttempts, nil
}
