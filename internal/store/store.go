package store

import (
	"context"

	"github.com/webitel/rocrate-exporter/internal/model"
)

type Store interface {
	History() HistoryStore

	// ------------ Database Management ------------ //
	Open() error
	Close() error
}

type HistoryStore interface {
	InsertExportHistory(ctx context.Context, input *model.NewExportHistory) (int64, error)
	UpdateExportStatus(ctx context.Context, input *model.UpdateExportStatus) error
	GetExportHistory(ctx context.Context, email string, page, size int) (*model.HistoryPage, error)
}

// Enabled reports whether s persists anything.
func Enabled(s Store) bool {
	_, noop := s.(Noop)
	return s != nil && !noop
}

// Noop is used when no database is configured.
type Noop struct{}

func (Noop) History() HistoryStore { return noopHistory{} }
func (Noop) Open() error           { return nil }
func (Noop) Close() error          { return nil }

type noopHistory struct{}

func (noopHistory) InsertExportHistory(context.Context, *model.NewExportHistory) (int64, error) {
	return 0, nil
}

func (noopHistory) UpdateExportStatus(context.Context, *model.UpdateExportStatus) error {
	return nil
}

func (noopHistory) GetExportHistory(_ context.Context, _ string, page, _ int) (*model.HistoryPage, error) {
	return &model.HistoryPage{Data: []*model.ExportHistory{}, Page: page}, nil
}
