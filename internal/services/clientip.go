package services

import (
	"net/http"
	"strings"
)

// UnknownClientIP is recorded when no client address header is present.
const UnknownClientIP = "unknown"

var clientIPHeaders = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// ClientIP derives the scanning client's address from proxy headers, in
// priority order. For X-Forwarded-For only the first (client-most) hop is
// used.
func ClientIP(h http.Header) string {
	for _, name := range clientIPHeaders {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		if first, _, ok := strings.Cut(v, ","); ok {
			v = strings.TrimSpace(first)
		}
		if v != "" {
			return v
		}
	}
	return UnknownClientIP
}
