package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/webitel/rocrate-exporter/internal/server/interceptor"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth answers 200 while every dependency responds. Dependencies are
// pinged at most once per second.
func HandleHealth(deps ...Pinger) http.Handler {
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			for _, d := range deps {
				if err := d.Ping(r.Context()); err != nil {
					slog.ErrorContext(r.Context(), "rocrate_exporter.server.health_ping_failed", slog.Any("error", err))
					interceptor.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
					return
				}
			}
		}
		interceptor.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
