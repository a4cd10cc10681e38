package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/webitel/rocrate-exporter/internal/archive"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/tracker"
)

// StagedAssembler downloads every file into a job scratch directory, archives the
// directory to a local zip and uploads that file. The scratch directory is removed
// on every exit path.
type StagedAssembler struct {
	client      ContentClient
	scratchDir  string
	concurrency int64
}

var _ Assembler = (*StagedAssembler)(nil)

// NewStagedAssembler stages jobs under scratchDir (the system temp dir when empty)
// fetching up to concurrency files of one item in parallel.
func NewStagedAssembler(client ContentClient, scratchDir string, concurrency int) *StagedAssembler {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &StagedAssembler{client: client, scratchDir: scratchDir, concurrency: int64(concurrency)}
}

func (a *StagedAssembler) Assemble(ctx context.Context, in *Input) (out *Outcome, err error) {
	jobDir, err := os.MkdirTemp(a.scratchDir, "rocrate-export-"+in.JobID+"-")
	if err != nil {
		return &Outcome{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(jobDir); rerr != nil {
			slog.ErrorContext(ctx, "rocrate_exporter.export.cleanup_failed",
				slog.String("job_id", in.JobID),
				slog.String("dir", jobDir),
				slog.Any("error", rerr),
			)
		}
	}()

	contentDir := filepath.Join(jobDir, "content")
	if err := os.Mkdir(contentDir, 0o755); err != nil {
		return &Outcome{}, fmt.Errorf("create work dir: %w", err)
	}

	in.Reporter.SetPhase(ctx, model.PhaseDownloading)
	s := &stageSink{client: a.client, token: in.Token, root: contentDir, reporter: in.Reporter, jobID: in.JobID}
	s.reportDisk(ctx)

	out, err = collect(ctx, in, a.client, s, a.concurrency)
	if err != nil {
		return out, err
	}
	if out.Delivered == 0 {
		return out, nil
	}

	in.Reporter.SetPhase(ctx, model.PhaseZipping)
	zipPath := filepath.Join(jobDir, in.JobID+".zip")
	size, err := archive.ZipDirectory(ctx, contentDir, zipPath, func(written, processed int64) {
		in.Reporter.ZipProgress(ctx, written, processed)
	})
	if err != nil {
		return out, err
	}
	s.reportDisk(ctx)

	// Staged content is no longer needed once archived.
	if err := os.RemoveAll(contentDir); err != nil {
		slog.WarnContext(ctx, "rocrate_exporter.export.cleanup_failed",
			slog.String("job_id", in.JobID),
			slog.String("dir", contentDir),
			slog.Any("error", err),
		)
	}

	in.Reporter.SetPhase(ctx, model.PhaseUploading)
	f, err := os.Open(zipPath)
	if err != nil {
		return out, fmt.Errorf("open archive: %w", err)
	}
	uploadErr := in.Upload(ctx, f, size)
	if cerr := f.Close(); cerr != nil {
		slog.WarnContext(ctx, "rocrate_exporter.export.archive_close_failed", slog.Any("error", cerr))
	}
	if uploadErr != nil {
		return out, uploadErr
	}

	out.Uploaded = true
	out.ArchiveSize = size
	return out, nil
}

type stageSink struct {
	client   FileClient
	token    string
	root     string
	reporter Reporter
	jobID    string
}

func (s *stageSink) localPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *stageSink) addFile(ctx context.Context, path string, f model.ExportFileInfo) error {
	_, err := s.client.DownloadFileToPath(ctx, f.ID, s.token, s.localPath(path))
	s.reportDisk(ctx)
	return err
}

func (s *stageSink) addMetadata(_ context.Context, path string, data []byte) error {
	dst := s.localPath(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("write metadata %s: %w", path, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write metadata %s: %w", path, err)
	}
	return nil
}

func (s *stageSink) fatal() error { return nil }

func (s *stageSink) reportDisk(ctx context.Context) {
	s.reporter.DiskStats(ctx, tracker.WorkDirSizeMB(s.root), tracker.TmpFreeSpaceMB())
}
