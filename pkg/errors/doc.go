// Package errors provides structured error handling with error codes for the
// device trust service.
//
// This package standardizes error handling across all packages with typed
// error codes, structured error details, and automatic HTTP status code
// mapping.
//
// # Basic Usage
//
// Creating errors with codes:
//
//	import "github.com/vaxguard/device-trust/pkg/errors"
//
//	// Create a simple error
//	err := errors.New(errors.ErrCodeDeviceNotFound, "device not found")
//
//	// Create error with formatted message
//	err := errors.Newf(errors.ErrCodeInvalidInput, "invalid status: %s", status)
//
//	// Wrap an existing error
//	err := errors.Wrap(dbErr, errors.ErrCodeStorageUnavailable, "failed to query database")
//
//	// Use convenience constructors
//	err := errors.NotFound("geographic restriction", id)
//	err := errors.InvalidInput("status", "must be trusted, blocked or suspicious")
//	err := errors.StorageUnavailable(dbErr, "save device")
//
// # Error Codes
//
// Generic:
//   - ErrCodeInternal
//   - ErrCodeInvalidInput
//   - ErrCodeNotFound
//   - ErrCodeConflict
//   - ErrCodeUnauthorized
//   - ErrCodeForbidden
//
// Device trust:
//   - ErrCodeDeviceNotFound
//   - ErrCodeFingerprintExists
//
// Storage and throttling:
//   - ErrCodeStorageUnavailable
//   - ErrCodeRateLimitExceeded
//
// # Inspecting Errors
//
// Checking error codes:
//
//	if errors.IsCode(err, errors.ErrCodeDeviceNotFound) {
//		// handle missing device
//	}
//
//	code := errors.GetCode(err)
//
// # HTTP Status Mapping
//
// Every error code maps to an HTTP status for the API layer:
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// FINGERPRINT_EXISTS maps to 409, DEVICE_NOT_FOUND to 404,
// STORAGE_UNAVAILABLE to 503 and RATE_LIMIT_EXCEEDED to 429.
package errors
