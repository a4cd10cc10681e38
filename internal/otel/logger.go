package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	slogutil "github.com/webitel/webitel-go-kit/infra/otel/log/bridge/slog"
	otelsdk "github.com/webitel/webitel-go-kit/infra/otel/sdk"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/webitel/rocrate-exporter/internal/model"
)

// LevelEnv selects the minimum log level (debug, info, warn, error).
const LevelEnv = "OTEL_LOG_LEVEL"

// Setup configures OpenTelemetry, redirects slog.Default() to it and returns
// the shutdown function of the SDK.
func Setup(ctx context.Context, service *resource.Resource) (func(context.Context) error, error) {
	var verbose slog.LevelVar
	verbose.Set(slog.LevelInfo)
	if input := os.Getenv(LevelEnv); input != "" {
		if err := verbose.UnmarshalText([]byte(input)); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", LevelEnv, input, err)
		}
	}

	shutdown, err := otelsdk.Configure(
		ctx,
		otelsdk.WithResource(service),
		otelsdk.WithLogBridge(func() {
			stdlog := slog.New(
				slogutil.WithLevel(
					&verbose,
					otelslog.NewHandler(model.AppServiceName),
				),
			)
			slog.SetDefault(stdlog)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("opentelemetry setup: %w", err)
	}

	slog.InfoContext(ctx, "rocrate_exporter.logging.configured", slog.String("level", verbose.Level().String()))
	return shutdown, nil
}
