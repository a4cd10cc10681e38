package interceptor

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/webitel/rocrate-exporter/auth"
)

// Authenticate rejects requests without a credential and stores the session
// on the request context.
func Authenticate(manager auth.Manager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := manager.AuthorizeFromRequest(r)
			if err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}
