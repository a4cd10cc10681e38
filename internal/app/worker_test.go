package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/rocrate-exporter/internal/model"
)

type recordingRunner struct {
	mu    sync.Mutex
	ran   []string
	block chan struct{}
}

func (r *recordingRunner) Run(ctx context.Context, job model.ExportJobMessage) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, job.JobID)
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func TestWorkerPoolRunsDispatchedJobs(t *testing.T) {
	r := &recordingRunner{}
	p := newWorkerPool(r, 8)
	p.Start(context.Background(), 2)

	for _, id := range []string{"a", "b", "c"} {
		require.True(t, p.Dispatch(model.ExportJobMessage{JobID: id}))
	}
	require.Eventually(t, func() bool { return r.count() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(time.Second))
	assert.False(t, p.Dispatch(model.ExportJobMessage{JobID: "late"}))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, r.ran)
}

func TestWorkerPoolRejectsWhenFull(t *testing.T) {
	r := &recordingRunner{block: make(chan struct{})}
	p := newWorkerPool(r, 1)

	// not started: the single slot fills up
	require.True(t, p.Dispatch(model.ExportJobMessage{JobID: "a"}))
	assert.False(t, p.Dispatch(model.ExportJobMessage{JobID: "b"}))

	p.Start(context.Background(), 1)
	close(r.block)
	require.NoError(t, p.Stop(time.Second))
	assert.Equal(t, []string{"a"}, r.ran)
}

func TestWorkerPoolStopCancelsAfterTimeout(t *testing.T) {
	r := &recordingRunner{block: make(chan struct{})}
	p := newWorkerPool(r, 1)
	p.Start(context.Background(), 1)
	require.True(t, p.Dispatch(model.ExportJobMessage{JobID: "stuck"}))
	require.Eventually(t, func() bool { return len(p.jobs) == 0 }, time.Second, 5*time.Millisecond)

	err := p.Stop(20 * time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 1, r.count())
}
