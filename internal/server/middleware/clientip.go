package middleware

import (
	"net/http"
	"strings"
)

// UnknownClientIP identifies callers that sent no forwarding headers.
const UnknownClientIP = "unknown"

// ClientIP returns the caller address as reported by the edge proxy: the first
// X-Forwarded-For entry, then X-Real-IP, then "unknown". Both headers are
// caller-controlled unless the edge overwrites them.
func ClientIP(r *http.Request) string {
	if r == nil {
		return UnknownClientIP
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return UnknownClientIP
}
