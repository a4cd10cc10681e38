package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	conf "github.com/webitel/rocrate-exporter/config"
	"github.com/webitel/rocrate-exporter/internal/app"
	"github.com/webitel/rocrate-exporter/internal/model"
	logging "github.com/webitel/rocrate-exporter/internal/otel"

	// ------------ logging ------------ //
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	// -------------------- plugin(s) -------------------- //
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/log/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/metric/stdout"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/otlp"
	_ "github.com/webitel/webitel-go-kit/infra/otel/sdk/trace/stdout"
)

// Run loads the configuration, starts the exporter and blocks until it stops.
// It returns the process exit code.
func Run() int {
	config, err := conf.LoadConfig()
	if err != nil {
		slog.Error("rocrate_exporter.main.configuration_error", slog.String("error", err.Error()))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// slog + OTEL logging
	service := resource.NewSchemaless(
		semconv.ServiceName(model.AppServiceName),
		semconv.ServiceVersion(model.CurrentVersion),
		semconv.ServiceInstanceID(instanceID(config)),
		semconv.ServiceNamespace(model.NamespaceName),
	)
	shutdown, err := logging.Setup(ctx, service)
	if err != nil {
		slog.Error("rocrate_exporter.main.logging_setup_error", slog.String("error", err.Error()))
		return 1
	}

	application, err := app.New(config, shutdown)
	if err != nil {
		slog.Error("rocrate_exporter.main.application_initialization_error", slog.String("error", err.Error()))
		_ = shutdown(context.Background())
		return 1
	}

	slog.Debug("rocrate_exporter.main.configuration_loaded",
		slog.String("http_address", config.HTTP.Address),
		slog.String("content_url", config.Content.BaseURL),
		slog.String("storage", config.Storage.Type),
		slog.String("email_provider", config.Email.Provider),
		slog.String("export_mode", config.Export.Mode),
	)

	go func() {
		<-ctx.Done()
		slog.Info("rocrate_exporter.main.received_kill_signal", slog.String("status", "stopping"))
		if err := application.Stop(); err != nil {
			slog.Error("rocrate_exporter.main.stop_error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("rocrate_exporter.main.starting_application")
	if err := application.Start(ctx); err != nil {
		slog.Error("rocrate_exporter.main.application_start_error", slog.String("error", err.Error()))
		_ = application.Stop()
		return 1
	}
	slog.Info("rocrate_exporter.main.application_stopped")
	return 0
}

func instanceID(config *conf.AppConfig) string {
	if config.Consul != nil && config.Consul.Id != "" {
		return config.Consul.Id
	}
	host, _ := os.Hostname()
	return host
}
