package throttle

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware applies a per-IP limiter in front of the authentication surface
type Middleware struct {
	limiter Limiter
}

// NewMiddleware creates a throttling middleware around the given limiter
func NewMiddleware(limiter Limiter) *Middleware {
	return &Middleware{limiter: limiter}
}

// Handler returns the throttling middleware handler. Limiter storage failures
// fail open: the request proceeds and the failure is logged.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := requestIP(r)

		allowed, remaining, err := m.limiter.Allow(r.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed, allowing request", "err", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			slog.Warn("Rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "rate_limit_exceeded", "message": "Too many requests. Please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIP extracts the client IP address from the request
func requestIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
