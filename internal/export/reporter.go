package export

import (
	"context"

	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/tracker"
)

// jobReporter forwards assembly progress of one job to the tracker.
type jobReporter struct {
	tracker *tracker.Tracker
	jobID   string
}

func (r *jobReporter) SetPhase(ctx context.Context, phase model.JobPhase) {
	r.tracker.SetPhase(ctx, r.jobID, phase)
}

func (r *jobReporter) FileDelivered(ctx context.Context, count int, size int64) {
	r.tracker.SetDownloadProgress(ctx, r.jobID, count, size)
}

func (r *jobReporter) FileFailed(ctx context.Context, filename, reason string) {
	r.tracker.AddFailedFile(ctx, r.jobID, filename, reason)
}

func (r *jobReporter) ZipProgress(ctx context.Context, written, processed int64) {
	r.tracker.SetZipProgress(ctx, r.jobID, written, processed)
}

func (r *jobReporter) UploadProgress(ctx context.Context, loaded, total int64) {
	r.tracker.SetUploadProgress(ctx, r.jobID, loaded, total)
}

func (r *jobReporter) DiskStats(ctx context.Context, workDirMB, tmpFreeMB int64) {
	r.tracker.SetDiskStats(ctx, r.jobID, workDirMB, tmpFreeMB)
}
