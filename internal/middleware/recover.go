package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "tabviz/internal/errors"
)

// writeProblem answers with RFC 7807 problem details from middleware that
// runs before the handlers' ErrorHandler is reachable.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, http.StatusText(status), detail, r.URL.Path)
	if id := GetReqID(r.Context()); id != "" {
		problem.WithExtension("trace_id", id)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Recoverer turns a handler panic into a logged 500. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rvr),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				writeProblem(w, r, http.StatusInternalServerError, apierrors.TypeInternal,
					"An unexpected error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout puts a deadline on the request context. Handlers observe it via
// r.Context(); a 504 is written only when the handler gave up without
// writing a response.
func Timeout(timeout time.Duration, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if ww.Status() != 0 || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			logger.WarnContext(r.Context(), "request timed out",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("timeout", timeout),
			)
			writeProblem(w, r, http.StatusGatewayTimeout, apierrors.TypeTimeout,
				"The request took too long to process")
		})
	}
}
