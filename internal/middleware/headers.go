package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// CORSConfig holds CORS configuration. Empty slices take the defaults the
// browser client needs.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	Logger           *slog.Logger
}

func (c CORSConfig) withDefaults() CORSConfig {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Accept", "Content-Type", "X-Request-ID", "X-API-Key"}
	}
	if len(c.ExposedHeaders) == 0 {
		c.ExposedHeaders = []string{"X-Request-ID", "X-Dataset-Snapshot", "X-Chart-Cache", "Content-Disposition"}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 300
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c CORSConfig) allows(origin string) bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	return slices.ContainsFunc(c.AllowedOrigins, func(o string) bool {
		return o == "*" || strings.EqualFold(o, origin)
	})
}

// CORS answers preflight requests and reflects allowed origins
func CORS(config CORSConfig) func(next http.Handler) http.Handler {
	cfg := config.withDefaults()
	static := http.Header{
		"Access-Control-Allow-Methods":  {strings.Join(cfg.AllowedMethods, ", ")},
		"Access-Control-Allow-Headers":  {strings.Join(cfg.AllowedHeaders, ", ")},
		"Access-Control-Expose-Headers": {strings.Join(cfg.ExposedHeaders, ", ")},
		"Access-Control-Max-Age":        {strconv.Itoa(cfg.MaxAge)},
	}
	if cfg.AllowCredentials {
		static.Set("Access-Control-Allow-Credentials", "true")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := cfg.allows(origin)

			h := w.Header()
			for k, v := range static {
				h[k] = v
			}
			if allowed && origin != "" {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				cfg.Logger.DebugContext(r.Context(), "CORS preflight",
					slog.String("origin", origin),
					slog.Bool("allowed", allowed),
				)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const contentSecurityPolicy = "default-src 'self'; img-src 'self' data: blob:; " +
	"style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:"

// SecurityHeaders sets the response hardening headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// Compress gzips JSON, problem and CSV responses. PNG charts are already
// compressed and pass through.
func Compress(level int) func(next http.Handler) http.Handler {
	return chimw.Compress(level, "application/json", "application/problem+json", "text/csv")
}

// RealIP rewrites RemoteAddr from X-Forwarded-For / X-Real-IP
func RealIP(next http.Handler) http.Handler {
	return chimw.RealIP(next)
}
