package app

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/webitel/rocrate-exporter/internal/handler/rest"
)

// serviceRegistration holds information for initializing and registering an HTTP handler.
type serviceRegistration struct {
	init     func(*App) (any, error)               // Initialization function for *App
	register func(router *mux.Router, handler any) // Registration function for the router
	name     string                                // Service name for logging
}

// RegisterServices initializes and registers all HTTP handlers.
func RegisterServices(router *mux.Router, appInstance *App) {
	services := []serviceRegistration{
		{
			init: func(a *App) (any, error) { return rest.NewExportHandler(a.ExportService, a.sessionManager) },
			register: func(r *mux.Router, h any) {
				h.(*rest.ExportHandler).Register(r)
			},
			name: "Export",
		},
		{
			init: func(a *App) (any, error) { return rest.HandleHealth(a.healthChecks()...), nil },
			register: func(r *mux.Router, h any) {
				r.Handle("/health", h.(http.Handler)).Methods(http.MethodGet)
			},
			name: "Health",
		},
	}

	// Initialize and register each service
	for _, service := range services {
		h, err := service.init(appInstance)
		if err != nil {
			slog.Error("rocrate_exporter.app.service_init_failed", slog.String("service", service.name), slog.Any("error", err))
			continue
		}
		service.register(router, h)
		slog.Debug("rocrate_exporter.app.service_registered", slog.String("service", service.name))
	}
}
