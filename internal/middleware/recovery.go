package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const internalErrorBody = `{"detail":"Internal server error","code":"INTERNAL_ERROR"}`

// Recoverer turns handler panics into a generic JSON 500. The panic value and
// stack go to the log only. With devMode the stack is also printed to stderr
// in readable form.
func Recoverer(logger *slog.Logger, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				// http.ErrAbortHandler must keep aborting the connection.
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				stack := debug.Stack()
				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(stack)),
				)
				if devMode {
					_, _ = os.Stderr.Write(stack)
				}

				// Too late for a JSON body once the handler has written headers.
				if ww, ok := w.(chimiddleware.WrapResponseWriter); ok && ww.Status() != 0 {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(internalErrorBody))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
