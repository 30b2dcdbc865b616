package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "tabviz/internal/errors"
)

type apiClientKey struct{}

// APIKeyAuth guards routes with the X-API-Key header. validKeys maps a key
// to the client name recorded in the audit log. An empty map disables the
// check.
func APIKeyAuth(logger *slog.Logger, validKeys map[string]string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				logger.WarnContext(ctx, "missing API key",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeProblem(w, r, http.StatusUnauthorized, apierrors.TypeUnauthorized, "API key required")
				return
			}

			clientName, ok := lookupKey(validKeys, apiKey)
			if !ok {
				logger.WarnContext(ctx, "invalid API key",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeProblem(w, r, http.StatusUnauthorized, apierrors.TypeUnauthorized, "Invalid API key")
				return
			}

			ctx = context.WithValue(ctx, apiClientKey{}, clientName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupKey compares in constant time against every configured key
func lookupKey(validKeys map[string]string, apiKey string) (string, bool) {
	var name string
	found := false
	for key, client := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			name, found = client, true
		}
	}
	return name, found
}

// APIClient returns the client name attached by APIKeyAuth
func APIClient(ctx context.Context) string {
	client, _ := ctx.Value(apiClientKey{}).(string)
	return client
}

// AuditLog records requests that change the session: loads, uploads and
// type casts
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			client := APIClient(ctx)
			if client == "" {
				client = "anonymous"
			}
			logger.InfoContext(ctx, "audit log",
				"event_type", "dataset_mutation",
				"client", client,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"request_id", GetReqID(ctx),
			)
		})
	}
}
