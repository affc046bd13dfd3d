package middleware

import (
	"net/http"
)

// DefaultMaxRequestBodySize fits a pet photo sent as multipart.
const DefaultMaxRequestBodySize = 6 << 20

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS in dev environments.
	IsDevelopment bool
}

type header struct{ name, value string }

// baseSecurityHeaders go on every response. The CSP keeps img-src so the
// QR code PNG can be opened in a browser tab. no-store keeps owner contact
// details out of shared caches.
var baseSecurityHeaders = []header{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-site"},
	{"Cache-Control", "no-store"},
}

const hstsValue = "max-age=31536000; includeSubDomains; preload"

func (c SecurityConfig) headers() []header {
	hs := append([]header(nil), baseSecurityHeaders...)
	if !c.IsDevelopment {
		hs = append(hs, header{"Strict-Transport-Security", hstsValue})
	}
	return hs
}

// Security sets the fixed response hardening headers before the handler
// runs, so handlers may still override Cache-Control.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	hs := cfg.headers()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range hs {
				h.Set(kv.name, kv.value)
			}
			h.Del("Server")
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize returns a middleware that limits request body size.
// Bodies declared larger are rejected up front; others are wrapped so reads
// past the limit fail.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}
