package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Signals contains the request headers used to derive a device fingerprint.
// It is constructed once at the HTTP boundary; the rest of the package never
// touches a raw request.
type Signals struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
}

// Fingerprint derives the device identity token for the given signals.
// The token is a SHA-256 hash (hex encoded) of the header values joined with
// a pipe delimiter. Missing headers contribute empty strings, so the result
// is deterministic for a fixed browser configuration. This is a coarse
// fingerprint: two genuinely different devices with identical headers derive
// the same token.
func Fingerprint(sig Signals) string {
	combined := fmt.Sprintf("%s|%s|%s", sig.UserAgent, sig.AcceptLanguage, sig.AcceptEncoding)
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// SignalsFromRequest extracts fingerprint signals from an HTTP request
func SignalsFromRequest(r *http.Request) Signals {
	return Signals{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
	}
}

// ClientIP resolves the client address, preferring the first entry of an
// X-Forwarded-For header, then the direct peer address, then "unknown".
func ClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RequestFingerprint is a convenience function that extracts signals from a
// request and derives the fingerprint in one step
func RequestFingerprint(r *http.Request) string {
	return Fingerprint(SignalsFromRequest(r))
}
