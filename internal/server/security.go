package server

import (
	"net/http"
	"strings"
)

// SecurityConfig controls the HTTP hardening applied to every endpoint.
type SecurityConfig struct {
	// EnableCORS toggles CORS response headers.
	EnableCORS bool
	// AllowedOrigins lists the origins granted cross-origin access.
	// A single "*" entry allows any origin.
	AllowedOrigins []string
	// AllowedMethods lists the methods advertised in CORS responses.
	AllowedMethods []string
}

// DefaultSecurityConfig returns the configuration used unless overridden:
// permissive CORS for read-only GET endpoints.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}
}

// SecurityMiddleware sets standard security headers and, when enabled, CORS
// headers on every response. OPTIONS preflight requests are answered
// directly without reaching the next handler.
func SecurityMiddleware(config SecurityConfig, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if config.EnableCORS {
			origin := r.Header.Get("Origin")
			if allowed := resolveOrigin(config.AllowedOrigins, origin); allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// resolveOrigin returns the Access-Control-Allow-Origin value for the given
// request origin, or empty when the origin is not allowed.
func resolveOrigin(allowedOrigins []string, origin string) string {
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == origin && origin != "" {
			return origin
		}
	}
	return ""
}
