package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/notify"
	"github.com/webitel/rocrate-exporter/internal/storage"
	"github.com/webitel/rocrate-exporter/internal/store"
	"github.com/webitel/rocrate-exporter/internal/tracker"
)

const (
	MessageAllFailed   = "All files failed to download"
	archiveContentType = "application/zip"
	tracerName         = "github.com/webitel/rocrate-exporter/internal/export"
)

var ErrAllFilesFailed = errors.New(MessageAllFailed)

type Config struct {
	Bucket     string
	PresignTTL time.Duration
}

// Pipeline runs export jobs: grouping, assembly, upload and notification.
type Pipeline struct {
	entities  EntityClient
	assembler Assembler
	blobs     storage.Blobstore
	tracker   *tracker.Tracker
	notifier  *notify.Notifier
	history   store.HistoryStore
	cfg       Config
	tracer    trace.Tracer
}

func NewPipeline(
	entities EntityClient,
	assembler Assembler,
	blobs storage.Blobstore,
	tr *tracker.Tracker,
	notifier *notify.Notifier,
	history store.HistoryStore,
	cfg Config,
) *Pipeline {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}
	if history == nil {
		history = store.Noop{}.History()
	}
	return &Pipeline{
		entities:  entities,
		assembler: assembler,
		blobs:     blobs,
		tracker:   tr,
		notifier:  notifier,
		history:   history,
		cfg:       cfg,
		tracer:    otel.Tracer(tracerName),
	}
}

// Run executes one job to a terminal phase. It never returns an error and never
// panics; every outcome is recorded in the tracker.
func (p *Pipeline) Run(ctx context.Context, job model.ExportJobMessage) {
	ctx, span := p.tracer.Start(ctx, "export.job", trace.WithAttributes(
		attribute.String("job.id", job.JobID),
		attribute.Int("job.files", len(job.Files)),
	))
	defer span.End()

	log := slog.With(slog.String("job_id", job.JobID))
	log.InfoContext(ctx, "rocrate_exporter.export.job_started", slog.Int("files", len(job.Files)))

	var totalSize int64
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			log.ErrorContext(ctx, "rocrate_exporter.export.job_panicked",
				slog.Any("error", err),
				slog.String("stack", string(debug.Stack())),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			p.fail(ctx, job, err.Error(), totalSize)
		}
	}()

	if err := p.run(ctx, job, &totalSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "rocrate_exporter.export.job_failed", slog.Any("error", err))
		return
	}
	log.InfoContext(ctx, "rocrate_exporter.export.job_completed")
}

func (p *Pipeline) run(ctx context.Context, job model.ExportJobMessage, totalSize *int64) error {
	p.tracker.SetPhase(ctx, job.JobID, model.PhaseGrouping)
	groups, size := GroupFilesByItem(ctx, job.Files, job.AccessToken, p.entities)
	*totalSize = size
	p.tracker.SetTotalSize(ctx, job.JobID, size)

	reporter := &jobReporter{tracker: p.tracker, jobID: job.JobID}
	key := job.ObjectKey()
	upload := func(ctx context.Context, body io.Reader, n int64) error {
		body = storage.NewProgressReader(body, n, func(loaded, total int64) {
			reporter.UploadProgress(ctx, loaded, total)
		})
		if err := p.blobs.Upload(ctx, p.cfg.Bucket, key, body, n, archiveContentType); err != nil {
			return &apperrors.UploadError{Key: key, Cause: err}
		}
		return nil
	}

	out, err := p.assembler.Assemble(ctx, &Input{
		JobID:    job.JobID,
		Token:    job.AccessToken,
		Groups:   groups,
		Reporter: reporter,
		Upload:   upload,
	})
	if err != nil {
		p.fail(ctx, job, err.Error(), size)
		return err
	}
	if out.Delivered == 0 {
		p.fail(ctx, job, MessageAllFailed, size)
		return ErrAllFilesFailed
	}

	url, err := p.blobs.PresignURL(ctx, p.cfg.Bucket, key, p.cfg.PresignTTL)
	if err != nil {
		if derr := p.blobs.DeleteObject(ctx, p.cfg.Bucket, key); derr != nil {
			slog.WarnContext(ctx, "rocrate_exporter.export.archive_delete_failed",
				slog.String("job_id", job.JobID),
				slog.String("key", key),
				slog.Any("error", derr),
			)
		}
		err = &apperrors.UploadError{Key: key, Cause: err}
		p.fail(ctx, job, err.Error(), size)
		return err
	}

	p.tracker.SetPhase(ctx, job.JobID, model.PhaseEmailing)
	p.notify(ctx, notify.Params{
		To:           job.Email,
		DownloadURL:  url,
		FileCount:    len(job.Files),
		TotalSize:    size,
		MissingFiles: out.Failed,
		LinkTTL:      p.cfg.PresignTTL,
	})
	p.tracker.Complete(ctx, job.JobID, url)
	p.record(ctx, &model.UpdateExportStatus{
		JobID:       job.JobID,
		Status:      model.ExportStatusCompleted,
		FailedCount: len(out.Failed),
		DownloadURL: &url,
	})
	return nil
}

// fail marks the job failed and sends the failure email listing every file
// recorded as failed so far.
func (p *Pipeline) fail(ctx context.Context, job model.ExportJobMessage, message string, totalSize int64) {
	p.tracker.Fail(ctx, job.JobID, message)

	var missing []model.FailedFile
	if st, err := p.tracker.Get(ctx, job.JobID); err == nil {
		missing = st.FailedFiles
	}
	p.notify(ctx, notify.Params{
		To:           job.Email,
		FileCount:    len(job.Files),
		TotalSize:    totalSize,
		MissingFiles: missing,
	})
	p.record(ctx, &model.UpdateExportStatus{
		JobID:        job.JobID,
		Status:       model.ExportStatusFailed,
		FailedCount:  len(missing),
		ErrorMessage: &message,
	})
}

func (p *Pipeline) notify(ctx context.Context, params notify.Params) {
	if err := p.notifier.SendResult(ctx, params); err != nil {
		slog.ErrorContext(ctx, "rocrate_exporter.export.notification_failed", slog.Any("error", err))
	}
}

func (p *Pipeline) record(ctx context.Context, update *model.UpdateExportStatus) {
	if err := p.history.UpdateExportStatus(ctx, update); err != nil {
		slog.WarnContext(ctx, "rocrate_exporter.export.history_update_failed",
			slog.String("job_id", update.JobID),
			slog.Any("error", err),
		)
	}
}
