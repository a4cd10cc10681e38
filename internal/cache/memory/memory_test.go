package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/rocrate-exporter/internal/cache"
	"github.com/webitel/rocrate-exporter/internal/model"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Create(ctx, &model.JobState{JobID: "j1", Phase: model.PhaseGrouping}))
	assert.ErrorIs(t, s.Create(ctx, &model.JobState{JobID: "j1"}), cache.ErrExists)

	require.NoError(t, s.Update(ctx, "j1", func(st *model.JobState) bool {
		st.Phase = model.PhaseDownloading
		st.FailedFiles = append(st.FailedFiles, model.FailedFile{Filename: "a", Error: "x"})
		return true
	}))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDownloading, got.Phase)

	// Returned copies are detached from the store.
	got.FailedFiles[0].Filename = "changed"
	again, _ := s.Get(ctx, "j1")
	assert.Equal(t, "a", again.FailedFiles[0].Filename)

	require.NoError(t, s.Update(ctx, "j1", func(st *model.JobState) bool {
		st.Phase = model.PhaseZipping
		return false
	}))
	again, _ = s.Get(ctx, "j1")
	assert.Equal(t, model.PhaseDownloading, again.Phase)

	assert.ErrorIs(t, s.Update(ctx, "nope", func(*model.JobState) bool { return true }), cache.ErrNotFound)
	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	old := now.Add(-2 * time.Hour)
	recent := now.Add(-10 * time.Minute)

	require.NoError(t, s.Create(ctx, &model.JobState{JobID: "old", Phase: model.PhaseComplete, CompletedAt: &old}))
	require.NoError(t, s.Create(ctx, &model.JobState{JobID: "recent", Phase: model.PhaseFailed, CompletedAt: &recent}))
	require.NoError(t, s.Create(ctx, &model.JobState{JobID: "running", Phase: model.PhaseDownloading}))

	n, err := s.Sweep(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = s.Get(ctx, "recent")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "running")
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()
	const jobs, updates = 8, 200

	for i := 0; i < jobs; i++ {
		require.NoError(t, s.Create(ctx, &model.JobState{JobID: fmt.Sprint(i)}))
	}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for u := 0; u < updates; u++ {
					_ = s.Update(ctx, id, func(st *model.JobState) bool {
						st.DownloadedFiles++
						return true
					})
				}
			}(fmt.Sprint(i))
		}
	}
	wg.Wait()

	for i := 0; i < jobs; i++ {
		st, err := s.Get(ctx, fmt.Sprint(i))
		require.NoError(t, err)
		assert.Equal(t, 4*updates, st.DownloadedFiles)
	}
}
