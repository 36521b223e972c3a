package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ExtractIP returns the client IP for a request: X-Forwarded-For first
// (first entry when comma-separated), then X-Real-IP, then RemoteAddr
// without its port.
//
// The proxy headers are trusted, so this must only run behind a reverse
// proxy that sets them; exposed directly, spoofed headers bypass the rate
// limiter.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
