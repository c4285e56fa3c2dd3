// Package notify delivers administrator notifications when a new device is
// recorded pending approval. Delivery happens at the HTTP boundary, never
// inside the trust evaluation, and failures only log.
package notify

import (
	"context"

	"github.com/vaxguard/device-trust/pkg/device"
)

// DeviceNotifier is notified when a device enters the pending state and is
// awaiting administrator review.
type DeviceNotifier interface {
	NotifyPendingDevice(ctx context.Context, dev device.TrustedDevice) error
}

// NoopNotifier discards notifications; used when no SMTP server is configured
type NoopNotifier struct{}

// NotifyPendingDevice does nothing
func (NoopNotifier) NotifyPendingDevice(ctx context.Context, dev device.TrustedDevice) error {
	return nil
}
