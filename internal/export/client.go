package export

import (
	"context"
	"io"

	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/rocrate"
)

// EntityClient reads entity records and their provenance documents.
type EntityClient interface {
	GetEntityMetadata(ctx context.Context, entityID, token string) (*model.Entity, error)
	GetEntityProvenance(ctx context.Context, entityID, token string) (rocrate.Crate, error)
}

// FileClient transfers file bytes.
type FileClient interface {
	// OpenFileStream must not connect before the first Read.
	OpenFileStream(ctx context.Context, fileID, token string) io.ReadCloser
	DownloadFileToPath(ctx context.Context, fileID, token, dst string) (int64, error)
}

type ContentClient interface {
	EntityClient
	FileClient
}
