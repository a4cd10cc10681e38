package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/rocrate-exporter/internal/cache"
	"github.com/webitel/rocrate-exporter/internal/model"
)

const (
	testRedisAddr     = "localhost:6379"
	testRedisPassword = ""
	testRedisDB       = 0
)

func getTestCache(t *testing.T) *RedisCache {
	c, err := NewRedisCache(testRedisAddr, testRedisPassword, testRedisDB, time.Minute)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisJobLifecycle(t *testing.T) {
	c := getTestCache(t)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { _ = c.Delete(ctx, id) })

	require.NoError(t, c.Create(ctx, &model.JobState{JobID: id, Phase: model.PhaseGrouping, TotalFiles: 2}))
	assert.ErrorIs(t, c.Create(ctx, &model.JobState{JobID: id}), cache.ErrExists)

	now := time.Now().UTC()
	require.NoError(t, c.Update(ctx, id, func(st *model.JobState) bool {
		st.Phase = model.PhaseComplete
		st.DownloadURL = "https://example/x.zip"
		st.CompletedAt = &now
		return true
	}))

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseComplete, got.Phase)
	assert.Equal(t, 2, got.TotalFiles)

	ttl, err := c.client.TTL(ctx, jobKey(id)).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
	assert.Greater(t, ttl, time.Duration(0))

	assert.ErrorIs(t, c.Update(ctx, uuid.NewString(), func(*model.JobState) bool { return true }), cache.ErrNotFound)
}

func TestRedisConcurrentUpdates(t *testing.T) {
	c := getTestCache(t)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { _ = c.Delete(ctx, id) })

	require.NoError(t, c.Create(ctx, &model.JobState{JobID: id}))

	const workers, updates = 4, 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for u := 0; u < updates; u++ {
				assert.NoError(t, c.Update(ctx, id, func(st *model.JobState) bool {
					st.DownloadedFiles++
					return true
				}))
			}
		}()
	}
	wg.Wait()

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, workers*updates, got.DownloadedFiles)
}
