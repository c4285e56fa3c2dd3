// Package device binds login trust to a derived device identity instead of
// an IP address. A device must be explicitly approved by an administrator
// before it may be used with an account.
//
// # Overview
//
// The device package provides:
//   - Device fingerprinting from stable request headers
//   - A trust state machine (pending, trusted, blocked, suspicious)
//   - Automatic re-pending of expired trust
//   - Administrator approval, revocation and listing
//
// # Basic Usage
//
//	import "github.com/vaxguard/device-trust/pkg/device"
//
//	repo := device.NewPostgresDeviceRepository(pool)
//	gate := device.NewTrustGate(repo)
//
//	// After credentials validate
//	decision, err := gate.Evaluate(ctx, accountID, device.SignalsFromRequest(r), device.ClientIP(r))
//	if err != nil {
//		// storage fault
//	}
//	if !decision.Allowed {
//		// map decision.Reason to a 403 response
//	}
//
// # Approval Flow
//
// The first time a fingerprint is seen the gate registers it in PENDING and
// denies the login. An administrator then decides:
//
//	approvals := device.NewApprovalService(repo)
//	dev, err := approvals.Approve(ctx, deviceID, device.ApproveParams{
//		Status:        device.StatusTrusted,
//		Notes:         "front desk workstation",
//		ExpiresInDays: 30,
//		ApprovedBy:    adminID,
//	})
//
// Once trust expires the device drops back to PENDING on its next use and
// the cycle repeats. Revoke transitions a device to BLOCKED; records are
// never deleted.
//
// # Related Packages
//
//   - pkg/attempt - login attempt ledger for brute force detection
//   - pkg/throttle - rate limiting and lockout policy on top of the ledger
package device
