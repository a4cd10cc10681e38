package interceptor

import (
	"encoding/json"
	"log/slog"
	"net/http"

	outerror "github.com/webitel/webitel-go-kit/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/webitel/rocrate-exporter/internal/errors"
)

// HandlerFunc is an HTTP handler that reports failures instead of writing them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts h so that any returned error is rendered by WriteError.
func Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			WriteError(w, r, err)
		}
	})
}

// WriteError logs err and renders it as an ApplicationError JSON body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := errors.Code(err)

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)

	if code >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, errors.Details(err), slog.String("method", r.Method), slog.String("path", r.URL.Path))
	} else {
		slog.WarnContext(ctx, errors.Details(err), slog.String("method", r.Method), slog.String("path", r.URL.Path))
	}

	id := errors.ID(err)
	if id == "" {
		id = defaultID(code)
	}
	appErr := &outerror.ApplicationError{
		Id:            id,
		DetailedError: err.Error(),
		StatusCode:    code,
		Status:        http.StatusText(code),
	}
	WriteJSON(w, code, appErr)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("rocrate_exporter.server.encode_response_failed", slog.Any("error", err))
	}
}

func defaultID(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "api.process.unauthenticated"
	case http.StatusForbidden:
		return "api.process.unauthorized"
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict:
		return "api.process.bad_args"
	case http.StatusServiceUnavailable:
		return "api.process.unavailable"
	default:
		return "api.process.internal"
	}
}
