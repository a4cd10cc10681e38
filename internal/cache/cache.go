package cache

import (
	"context"
	"errors"
	"time"

	"github.com/webitel/rocrate-exporter/internal/model"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrExists   = errors.New("job already exists")
)

// JobStore holds job states keyed by job id. Update is an atomic
// read-modify-write of one entry; entries of different jobs never block each other.
type JobStore interface {
	Create(ctx context.Context, state *model.JobState) error
	// Update applies fn to the stored state and persists it when fn returns true.
	// It returns ErrNotFound when the job is unknown.
	Update(ctx context.Context, jobID string, fn func(*model.JobState) bool) error
	Get(ctx context.Context, jobID string) (*model.JobState, error)
	Delete(ctx context.Context, jobID string) error
	// Sweep removes terminal entries completed before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Expired reports whether s completed before cutoff.
func Expired(s *model.JobState, cutoff time.Time) bool {
	return s.CompletedAt != nil && s.CompletedAt.Before(cutoff)
}
