package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/rocrate"
)

// Reporter receives progress of one job.
type Reporter interface {
	SetPhase(ctx context.Context, phase model.JobPhase)
	// FileDelivered receives running totals of delivered files and their declared size.
	FileDelivered(ctx context.Context, count int, size int64)
	FileFailed(ctx context.Context, filename, reason string)
	ZipProgress(ctx context.Context, written, processed int64)
	UploadProgress(ctx context.Context, loaded, total int64)
	DiskStats(ctx context.Context, workDirMB, tmpFreeMB int64)
}

// UploadFunc stores the finished archive. size is -1 when unknown.
type UploadFunc func(ctx context.Context, body io.Reader, size int64) error

type Input struct {
	JobID    string
	Token    string
	Groups   *FilesByItem
	Reporter Reporter
	// Upload is called at most once, and only if at least one file was delivered.
	Upload UploadFunc
}

type Outcome struct {
	Delivered     int
	DeliveredSize int64
	Failed        []model.FailedFile
	Uploaded      bool
	ArchiveSize   int64
}

// Assembler builds the archive of a job and hands it to Input.Upload. Per file
// failures are recorded in the Outcome; a returned error is fatal to the job.
type Assembler interface {
	Assemble(ctx context.Context, in *Input) (*Outcome, error)
}

type Mode string

const (
	ModeStreaming Mode = "streaming"
	ModeStaged    Mode = "staged"
)

// sink is where an assembly strategy puts entries.
type sink interface {
	addFile(ctx context.Context, path string, f model.ExportFileInfo) error
	addMetadata(ctx context.Context, path string, data []byte) error
	// fatal returns a non-nil error once the sink can accept no more entries.
	fatal() error
}

// collect drives the shared part of both strategies: transfer every file of every
// group, then write the filtered metadata of each item and collection that kept at
// least one child. Items are processed in group order; up to concurrency files of
// one item are transferred at once.
func collect(ctx context.Context, in *Input, client EntityClient, s sink, concurrency int64) (*Outcome, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	out := &Outcome{}
	var mu sync.Mutex

	keptItems := make(map[string]map[string]struct{})
	var collections []string

	for _, g := range in.Groups.Groups() {
		kept := make(map[string]struct{}, len(g.Files))

		paths := rocrate.NewFilePaths(g.ItemID)
		sem := semaphore.NewWeighted(concurrency)
		eg, ectx := errgroup.WithContext(ctx)
		for _, f := range g.Files {
			if err := sem.Acquire(ectx, 1); err != nil {
				break
			}
			entryPath := paths.Next(f.Filename)
			eg.Go(func() error {
				defer sem.Release(1)

				err := s.addFile(ectx, entryPath, f)
				if ferr := s.fatal(); ferr != nil {
					return ferr
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					slog.WarnContext(ctx, "rocrate_exporter.export.file_failed",
						slog.String("job_id", in.JobID),
						slog.String("file_id", f.ID),
						slog.Any("error", err),
					)
					out.Failed = append(out.Failed, model.FailedFile{Filename: f.Filename, Error: err.Error()})
					in.Reporter.FileFailed(ctx, f.Filename, err.Error())
					return nil
				}
				kept[f.ID] = struct{}{}
				out.Delivered++
				out.DeliveredSize += f.Size
				in.Reporter.FileDelivered(ctx, out.Delivered, out.DeliveredSize)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return out, err
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if len(kept) == 0 {
			continue
		}
		if err := writeMetadata(ctx, in, client, s, g.ItemID, kept); err != nil {
			return out, err
		}

		if g.Ungrouped() {
			continue
		}
		items, ok := keptItems[g.CollectionID]
		if !ok {
			items = make(map[string]struct{})
			keptItems[g.CollectionID] = items
			collections = append(collections, g.CollectionID)
		}
		items[g.ItemID] = struct{}{}
	}

	for _, id := range collections {
		if err := writeMetadata(ctx, in, client, s, id, keptItems[id]); err != nil {
			return out, err
		}
	}
	return out, nil
}

// writeMetadata adds the filtered provenance of an entity. A document that cannot
// be fetched is skipped; only a sink failure is returned.
func writeMetadata(ctx context.Context, in *Input, client EntityClient, s sink, entityID string, kept map[string]struct{}) error {
	crate, err := client.GetEntityProvenance(ctx, entityID, in.Token)
	if err != nil {
		slog.WarnContext(ctx, "rocrate_exporter.export.metadata_fetch_failed",
			slog.String("job_id", in.JobID),
			slog.String("entity_id", entityID),
			slog.Any("error", err),
		)
		return nil
	}
	data, err := rocrate.Filter(crate, kept).Marshal()
	if err != nil {
		return fmt.Errorf("encode metadata of %s: %w", entityID, err)
	}
	if err := s.addMetadata(ctx, rocrate.MetadataPath(entityID), data); err != nil {
		return err
	}
	return s.fatal()
}
