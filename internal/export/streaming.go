package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/webitel/rocrate-exporter/internal/archive"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/tracker"
)

// StreamingAssembler fetches, compresses and uploads at the same time. Files are
// opened only when the zip writer reaches them. Each file is spooled whole before
// its entry is written, so a file that breaks mid-transfer never reaches the
// archive; large files spill to spoolDir, one at a time.
//
// The upload starts with the first archive byte. When no file could be fetched the
// archive is never finalized, so nothing is uploaded.
type StreamingAssembler struct {
	client   ContentClient
	spoolDir string
}

var _ Assembler = (*StreamingAssembler)(nil)

// NewStreamingAssembler spools oversized entries under spoolDir (the system temp
// dir when empty).
func NewStreamingAssembler(client ContentClient, spoolDir string) *StreamingAssembler {
	return &StreamingAssembler{client: client, spoolDir: spoolDir}
}

func (a *StreamingAssembler) Assemble(ctx context.Context, in *Input) (*Outcome, error) {
	in.Reporter.SetPhase(ctx, model.PhaseDownloading)
	in.Reporter.DiskStats(ctx, 0, tracker.TmpFreeSpaceMB())

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	up := &deferredUpload{done: make(chan struct{})}
	up.start = func() {
		g.Go(func() error {
			err := in.Upload(gctx, pr, -1)
			up.finish(err)
			if err != nil {
				_ = pr.CloseWithError(err)
				return err
			}
			_ = pr.Close()
			return nil
		})
	}
	up.w = pw

	zw := archive.NewWriter(up)
	zw.SpoolDir(a.spoolDir)
	zw.OnProgress(func(written, processed int64) {
		in.Reporter.ZipProgress(ctx, written, processed)
	})

	s := &streamSink{client: a.client, token: in.Token, zw: zw, up: up}
	out, err := collect(gctx, in, a.client, s, 1)
	if err == nil && out.Delivered == 0 {
		// Nothing was written; the zip writer is dropped unfinished.
		return out, nil
	}
	if err == nil {
		in.Reporter.SetPhase(ctx, model.PhaseZipping)
		err = zw.Close()
		if uerr := up.err(); uerr != nil {
			err = uerr
		}
	}
	if err != nil {
		_ = pw.CloseWithError(err)
		if up.started() {
			_ = g.Wait()
		}
		if uerr := up.err(); uerr != nil {
			return out, uerr
		}
		return out, fmt.Errorf("assemble archive: %w", err)
	}

	in.Reporter.SetPhase(ctx, model.PhaseUploading)
	up.ensureStarted()
	_ = pw.Close()
	if err := g.Wait(); err != nil {
		return out, err
	}

	out.Uploaded = true
	out.ArchiveSize = zw.BytesWritten()
	slog.InfoContext(ctx, "rocrate_exporter.export.archive_streamed",
		slog.String("job_id", in.JobID),
		slog.Int("entries", zw.Entries()),
		slog.Int64("bytes", out.ArchiveSize),
	)
	return out, nil
}

// deferredUpload is the zip output. The upload goroutine starts on the first Write.
type deferredUpload struct {
	once  sync.Once
	start func()
	w     io.Writer

	isStarted bool
	done      chan struct{}
	mu        sync.Mutex
	uploadErr error
}

func (d *deferredUpload) ensureStarted() {
	d.once.Do(func() {
		d.mu.Lock()
		d.isStarted = true
		d.mu.Unlock()
		d.start()
	})
}

func (d *deferredUpload) Write(p []byte) (int, error) {
	d.ensureStarted()
	return d.w.Write(p)
}

func (d *deferredUpload) started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isStarted
}

func (d *deferredUpload) finish(err error) {
	d.mu.Lock()
	d.uploadErr = err
	d.mu.Unlock()
	close(d.done)
}

// err returns the upload error once the upload has ended with one.
func (d *deferredUpload) err() error {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.uploadErr
	default:
		return nil
	}
}

type streamSink struct {
	client FileClient
	token  string
	zw     *archive.Writer
	up     *deferredUpload
}

func (s *streamSink) addFile(ctx context.Context, path string, f model.ExportFileInfo) error {
	_, err := s.zw.AddStream(ctx, path, func(ctx context.Context) (io.ReadCloser, error) {
		return s.client.OpenFileStream(ctx, f.ID, s.token), nil
	})
	return err
}

func (s *streamSink) addMetadata(_ context.Context, path string, data []byte) error {
	return s.zw.AddBuffer(path, data)
}

func (s *streamSink) fatal() error {
	return s.up.err()
}
