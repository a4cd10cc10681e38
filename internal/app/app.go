package app

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/webitel/rocrate-exporter/auth"
	cfg "github.com/webitel/rocrate-exporter/config"
	"github.com/webitel/rocrate-exporter/internal/cache"
	"github.com/webitel/rocrate-exporter/internal/cache/memory"
	rediscache "github.com/webitel/rocrate-exporter/internal/cache/redis"
	"github.com/webitel/rocrate-exporter/internal/content"
	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/export"
	"github.com/webitel/rocrate-exporter/internal/handler/rest"
	"github.com/webitel/rocrate-exporter/internal/notify"
	"github.com/webitel/rocrate-exporter/internal/server"
	"github.com/webitel/rocrate-exporter/internal/service"
	"github.com/webitel/rocrate-exporter/internal/storage"
	"github.com/webitel/rocrate-exporter/internal/store"
	"github.com/webitel/rocrate-exporter/internal/store/postgres"
	"github.com/webitel/rocrate-exporter/internal/tracker"
	"github.com/webitel/rocrate-exporter/registry"
	"github.com/webitel/rocrate-exporter/registry/consul"
)

type App struct {
	Config         *cfg.AppConfig
	exitCh         chan error
	shutdown       func(ctx context.Context) error
	Store          store.Store
	JobStore       cache.JobStore
	Tracker        *tracker.Tracker
	Content        *content.Client
	Blobstore      storage.Blobstore
	Notifier       *notify.Notifier
	Pipeline       *export.Pipeline
	ExportService  service.ExportService
	sessionManager auth.Manager
	workers        *workerPool
	server         *server.Server
	stopSweeper    context.CancelFunc
}

// New creates a fully initialized App.
func New(config *cfg.AppConfig, shutdown func(ctx context.Context) error) (*App, error) {
	app := &App{
		Config:         config,
		shutdown:       shutdown,
		exitCh:         make(chan error, 1),
		sessionManager: auth.NewTokenManager(),
	}

	inits := []func() error{
		app.initStore,
		app.initJobStore,
		app.initContentClient,
		app.initBlobstore,
		app.initNotifier,
		app.initPipeline,
		app.initService,
		app.initServer,
	}
	for _, initFn := range inits {
		if err := initFn(); err != nil {
			return nil, err
		}
	}

	// --------- Route Registration (HTTP) ---------
	RegisterServices(app.server.Router, app)

	return app, nil
}

// --------- Private init methods ---------

func (app *App) initStore() error {
	if app.Config.Database == nil || app.Config.Database.Url == "" {
		slog.Info("rocrate_exporter.app.history_disabled")
		app.Store = store.Noop{}
		return nil
	}
	app.Store = postgres.New(app.Config.Database.Url)
	return nil
}

func (app *App) initJobStore() error {
	if app.Config.Redis == nil || app.Config.Redis.Addr == "" {
		app.JobStore = memory.New()
	} else {
		redisCache, err := rediscache.NewRedisCache(
			app.Config.Redis.Addr,
			app.Config.Redis.Password,
			app.Config.Redis.DB,
			app.Config.Export.Retention,
		)
		if err != nil {
			return errors.New("unable to initialize Redis", errors.WithCause(err))
		}
		app.JobStore = redisCache
	}
	app.Tracker = tracker.New(app.JobStore)
	return nil
}

func (app *App) initContentClient() error {
	client, err := content.NewClient(app.Config.Content.BaseURL, app.Config.Content.Timeout)
	if err != nil {
		return errors.New("unable to create content client", errors.WithCause(err))
	}
	app.Content = client
	return nil
}

func (app *App) initBlobstore() error {
	sc := app.Config.Storage
	blobs, err := storage.New(context.Background(), storage.Config{
		Type:      storage.Type(sc.Type),
		Bucket:    sc.Bucket,
		Region:    sc.Region,
		Endpoint:  sc.Endpoint,
		PathStyle: sc.PathStyle,
		Root:      sc.Root,
	})
	if err != nil {
		return errors.New("unable to create blobstore", errors.WithCause(err))
	}
	app.Blobstore = blobs
	return nil
}

func (app *App) initNotifier() error {
	ec := app.Config.Email
	sender, err := notify.NewSender(notify.Config{
		Provider: notify.Provider(ec.Provider),
		From:     ec.From,
		FromName: ec.FromName,
		Region:   ec.Region,
		Key:      ec.Key,
		Domain:   ec.Domain,
	})
	if err != nil {
		return errors.New("unable to create email sender", errors.WithCause(err))
	}
	app.Notifier = notify.NewNotifier(sender)
	return nil
}

func (app *App) initPipeline() error {
	ec := app.Config.Export

	var assembler export.Assembler
	switch export.Mode(ec.Mode) {
	case export.ModeStaged:
		assembler = export.NewStagedAssembler(app.Content, ec.ScratchDir, ec.ItemConcurrency)
	case export.ModeStreaming, "":
		assembler = export.NewStreamingAssembler(app.Content, ec.ScratchDir)
	default:
		return errors.New("unknown export mode: " + ec.Mode)
	}

	app.Pipeline = export.NewPipeline(
		app.Content,
		assembler,
		app.Blobstore,
		app.Tracker,
		app.Notifier,
		app.Store.History(),
		export.Config{
			Bucket:     app.Config.Storage.Bucket,
			PresignTTL: app.Config.Storage.PresignExpiry,
		},
	)
	app.workers = newWorkerPool(app.Pipeline, ec.QueueSize)
	return nil
}

func (app *App) initService() error {
	svc, err := service.NewExportService(app.Tracker, app.workers, app.Store, slog.Default())
	if err != nil {
		return err
	}
	app.ExportService = svc
	return nil
}

func (app *App) initServer() error {
	var reg registry.ServiceRegistrator
	if app.Config.Consul != nil && app.Config.Consul.Address != "" {
		r, err := consul.NewConsulRegistry(app.Config.Consul)
		if err != nil {
			return errors.New("failed to init consul registry", errors.WithCause(err))
		}
		reg = r
	}
	srv, err := server.BuildServer(app.Config.HTTP, reg, app.exitCh)
	if err != nil {
		return errors.New("failed to build server", errors.WithCause(err))
	}
	app.server = srv
	return nil
}

// healthChecks lists the dependencies /health pings.
func (app *App) healthChecks() []rest.Pinger {
	var deps []rest.Pinger
	if p, ok := app.Store.(rest.Pinger); ok {
		deps = append(deps, p)
	}
	if p, ok := app.JobStore.(rest.Pinger); ok {
		deps = append(deps, p)
	}
	return deps
}

// Start runs DB, HTTP server and background workers
func (app *App) Start(ctx context.Context) error {
	if err := app.Store.Open(); err != nil {
		return errors.New("failed to open store", errors.WithCause(err))
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	app.stopSweeper = cancel
	go app.Tracker.RunSweeper(sweepCtx, app.Config.Export.SweepInterval, app.Config.Export.Retention)

	// running jobs outlive ctx; Stop drains them
	app.workers.Start(context.WithoutCancel(ctx), app.Config.Export.Workers)
	go app.server.Start()

	slog.InfoContext(ctx, "rocrate_exporter.app.started",
		slog.String("http_address", app.server.Addr()),
		slog.String("export_mode", app.Config.Export.Mode),
	)
	return <-app.exitCh
}

// Stop gracefully shuts down all services
func (app *App) Stop() error {
	slog.Info("rocrate_exporter.main.stop_starting")
	var result *multierror.Error

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			result = multierror.Append(result, err)
		} else {
			slog.Info("server stopped")
		}
	}

	if app.workers != nil {
		if err := app.workers.Stop(drainTimeout); err != nil {
			result = multierror.Append(result, err)
		} else {
			slog.Info("export workers drained")
		}
	}

	if app.stopSweeper != nil {
		app.stopSweeper()
	}

	if app.JobStore != nil {
		if err := app.JobStore.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if app.shutdown != nil {
		if err := app.shutdown(context.Background()); err != nil {
			result = multierror.Append(result, err)
		} else {
			slog.Info("shutdown hook executed")
		}
	}

	select {
	case app.exitCh <- nil:
	default:
	}

	if err := result.ErrorOrNil(); err != nil {
		slog.Error("rocrate_exporter.main.stop_failed", slog.Any("error", err))
		return err
	}
	slog.Info("rocrate_exporter.main.stop_complete")
	return nil
}
