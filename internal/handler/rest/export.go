package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/webitel/rocrate-exporter/auth"
	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/server/interceptor"
	"github.com/webitel/rocrate-exporter/internal/service"
)

const maxRequestBody = 8 << 20

type ExportHandler struct {
	service service.ExportService
	auth    auth.Manager
}

func NewExportHandler(svc service.ExportService, manager auth.Manager) (*ExportHandler, error) {
	if svc == nil || manager == nil {
		return nil, errors.Internal("ExportService or auth manager is nil")
	}
	return &ExportHandler{service: svc, auth: manager}, nil
}

// Register mounts the export routes under /api/export.
func (h *ExportHandler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/export").Subrouter()

	api.Handle("/{jobId}/status", interceptor.Handle(h.status)).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(interceptor.Authenticate(h.auth))
	authed.Handle("", interceptor.Handle(h.submit)).Methods(http.MethodPost)
	authed.Handle("/history", interceptor.Handle(h.history)).Methods(http.MethodGet)
}

func (h *ExportHandler) submit(w http.ResponseWriter, r *http.Request) error {
	var req service.ExportRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		return errors.NewValidationError("body: " + err.Error())
	}

	res, err := h.service.Submit(r.Context(), auth.Token(r.Context()), &req)
	if err != nil {
		return err
	}
	interceptor.WriteJSON(w, http.StatusAccepted, res)
	return nil
}

func (h *ExportHandler) status(w http.ResponseWriter, r *http.Request) error {
	st, err := h.service.Status(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		return err
	}
	interceptor.WriteJSON(w, http.StatusOK, st)
	return nil
}

func (h *ExportHandler) history(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		return err
	}
	size, err := intParam(q.Get("size"), "size")
	if err != nil {
		return err
	}
	res, err := h.service.History(r.Context(), q.Get("email"), page, size)
	if err != nil {
		return err
	}
	interceptor.WriteJSON(w, http.StatusOK, res)
	return nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewValidationError(name + ": must be an integer")
	}
	return n, nil
}
