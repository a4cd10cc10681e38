package interceptor

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/webitel/rocrate-exporter/internal/errors"
)

// Recovery turns a handler panic into a 500 response.
func Recovery() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					slog.ErrorContext(r.Context(), "[PANIC RECOVER]",
						slog.Any("err", p),
						slog.String("stack", string(debug.Stack())),
					)
					WriteError(w, r, errors.Internal(fmt.Sprint(p), errors.WithID("server.recovery.panic")))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
