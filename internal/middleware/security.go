// Package middleware provides HTTP middleware for the authgate server.
package middleware

import (
	"net/http"
)

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS so plain-HTTP local runs keep working.
	IsDevelopment bool
}

// baseSecurityHeaders are sent on every response.
var baseSecurityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	// Legacy XSS filter off; CSP covers it.
	"X-XSS-Protection": "0",
	"Referrer-Policy":  "strict-origin-when-cross-origin",
	// The login page and its assets are served from this origin only.
	"Content-Security-Policy":      "default-src 'self'; frame-ancestors 'none'; form-action 'self'",
	"Cross-Origin-Opener-Policy":   "same-origin",
	"Cross-Origin-Resource-Policy": "same-origin",
	"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=(), usb=()",
	// Token and credential responses must never be cached.
	"Cache-Control": "no-store",
}

const hstsValue = "max-age=31536000; includeSubDomains; preload"

// Security returns a middleware that applies security headers to all
// responses. Apply it before any handler writes.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	headers := make(map[string]string, len(baseSecurityHeaders)+1)
	for k, v := range baseSecurityHeaders {
		headers[k] = v
	}
	if !cfg.IsDevelopment {
		headers["Strict-Transport-Security"] = hstsValue
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects bodies over maxBytes: up front with a JSON 413 when
// Content-Length already says so, otherwise by failing the read.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = w.Write([]byte(`{"detail":"Request body too large","code":"PAYLOAD_TOO_LARGE"}`))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
