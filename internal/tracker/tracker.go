package tracker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/webitel/rocrate-exporter/internal/cache"
	"github.com/webitel/rocrate-exporter/internal/model"
)

var ErrJobNotFound = cache.ErrNotFound

// Tracker records the progress of export jobs. Mutators are no-ops for unknown
// jobs and for jobs that already reached complete or failed.
type Tracker struct {
	store cache.JobStore
	now   func() time.Time
}

func New(store cache.JobStore) *Tracker {
	return &Tracker{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Init registers a job in the grouping phase.
func (t *Tracker) Init(ctx context.Context, jobID string, totalFiles int, totalSize int64) error {
	return t.store.Create(ctx, &model.JobState{
		JobID:       jobID,
		Phase:       model.PhaseGrouping,
		TotalFiles:  totalFiles,
		TotalSize:   totalSize,
		FailedFiles: []model.FailedFile{},
		StartedAt:   t.now(),
	})
}

// mutate applies fn to a live job. fn reports whether it changed anything.
func (t *Tracker) mutate(ctx context.Context, jobID, op string, fn func(*model.JobState) bool) {
	err := t.store.Update(ctx, jobID, func(s *model.JobState) bool {
		if s.Phase.Terminal() {
			return false
		}
		return fn(s)
	})
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		slog.WarnContext(ctx, "rocrate_exporter.tracker.update_failed",
			slog.String("job_id", jobID),
			slog.String("op", op),
			slog.Any("error", err),
		)
	}
}

func (t *Tracker) SetPhase(ctx context.Context, jobID string, phase model.JobPhase) {
	t.mutate(ctx, jobID, "set_phase", func(s *model.JobState) bool {
		if s.Phase == phase {
			return false
		}
		s.Phase = phase
		if phase.Terminal() {
			now := t.now()
			s.CompletedAt = &now
		}
		return true
	})
}

func (t *Tracker) SetTotalSize(ctx context.Context, jobID string, totalSize int64) {
	t.mutate(ctx, jobID, "set_total_size", func(s *model.JobState) bool {
		s.TotalSize = totalSize
		return true
	})
}

// SetDownloadProgress never moves the counters backwards.
func (t *Tracker) SetDownloadProgress(ctx context.Context, jobID string, downloadedFiles int, downloadedSize int64) {
	t.mutate(ctx, jobID, "set_download_progress", func(s *model.JobState) bool {
		changed := false
		if downloadedFiles > s.DownloadedFiles {
			s.DownloadedFiles = downloadedFiles
			changed = true
		}
		if downloadedSize > s.DownloadedSize {
			s.DownloadedSize = downloadedSize
			changed = true
		}
		return changed
	})
}

func (t *Tracker) AddFailedFile(ctx context.Context, jobID, filename, message string) {
	t.mutate(ctx, jobID, "add_failed_file", func(s *model.JobState) bool {
		s.FailedFiles = append(s.FailedFiles, model.FailedFile{Filename: filename, Error: message})
		return true
	})
}

func (t *Tracker) SetZipProgress(ctx context.Context, jobID string, written, processed int64) {
	t.mutate(ctx, jobID, "set_zip_progress", func(s *model.JobState) bool {
		s.Zip = model.ZipProgress{BytesWritten: written, BytesProcessed: processed}
		return true
	})
}

func (t *Tracker) SetUploadProgress(ctx context.Context, jobID string, loaded, total int64) {
	t.mutate(ctx, jobID, "set_upload_progress", func(s *model.JobState) bool {
		s.Upload = model.UploadProgress{Loaded: loaded, Total: total}
		return true
	})
}

func (t *Tracker) SetDiskStats(ctx context.Context, jobID string, workDirMB, tmpFreeMB int64) {
	t.mutate(ctx, jobID, "set_disk_stats", func(s *model.JobState) bool {
		s.Disk = model.DiskStats{WorkDirSizeMB: workDirMB, TmpFreeSpaceMB: tmpFreeMB}
		return true
	})
}

// Complete marks the job delivered. The download URL is only ever set here.
func (t *Tracker) Complete(ctx context.Context, jobID, downloadURL string) {
	t.mutate(ctx, jobID, "complete", func(s *model.JobState) bool {
		now := t.now()
		s.Phase = model.PhaseComplete
		s.DownloadURL = downloadURL
		s.CompletedAt = &now
		return true
	})
}

func (t *Tracker) Fail(ctx context.Context, jobID, message string) {
	t.mutate(ctx, jobID, "fail", func(s *model.JobState) bool {
		now := t.now()
		s.Phase = model.PhaseFailed
		s.ErrorMessage = message
		s.CompletedAt = &now
		return true
	})
}

// Query returns the job state with a memory snapshot taken now.
func (t *Tracker) Query(ctx context.Context, jobID string) (*model.JobStatus, error) {
	state, err := t.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.JobStatus{JobState: state, Memory: memorySnapshot()}, nil
}

// Get returns the stored job state.
func (t *Tracker) Get(ctx context.Context, jobID string) (*model.JobState, error) {
	return t.store.Get(ctx, jobID)
}

func memorySnapshot() model.MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return model.MemoryStats{
		HeapUsedMB:  toMB(int64(m.HeapAlloc)),
		HeapTotalMB: toMB(int64(m.HeapSys)),
		RssMB:       toMB(int64(m.Sys)),
	}
}

func toMB(b int64) int64 {
	return b / (1 << 20)
}
