package security

import (
	"net/http"
	"strconv"
)

// Headers sets the response hardening headers served by every API route.
type Headers struct {
	Enable bool
	// HSTSMaxAge is in seconds; zero disables Strict-Transport-Security.
	HSTSMaxAge int
	// NoStorePrefixes marks routes whose responses carry customer data
	// (cart, checkout, orders) and must not be cached by intermediaries.
	NoStorePrefixes []string
}

// Middleware attaches the configured headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	hsts := ""
	if h.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(h.HSTSMaxAge) + "; includeSubDomains"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if hsts != "" && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
			headers.Set("Strict-Transport-Security", hsts)
		}
		if h.noStore(r.URL.Path) {
			headers.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) noStore(path string) bool {
	for _, prefix := range h.NoStorePrefixes {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
