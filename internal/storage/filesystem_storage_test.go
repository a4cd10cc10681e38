// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()

	store, err := New(ctx, Config{Type: TypeFilesystem, Root: root})
	require.NoError(t, err)

	_, err = store.PresignURL(ctx, "exports-bucket", "exports/job.zip", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upload(ctx, "exports-bucket", "exports/job.zip", strings.NewReader("zipdata"), -1, "application/zip"))

	contents, err := os.ReadFile(filepath.Join(root, "exports-bucket", "exports", "job.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zipdata", string(contents))

	u, err := store.PresignURL(ctx, "exports-bucket", "exports/job.zip", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"), u)
	assert.True(t, strings.HasSuffix(u, "/exports-bucket/exports/job.zip"), u)

	require.NoError(t, store.DeleteObject(ctx, "exports-bucket", "exports/job.zip"))
	require.NoError(t, store.DeleteObject(ctx, "exports-bucket", "exports/job.zip"))
	assert.NoFileExists(t, filepath.Join(root, "exports-bucket", "exports", "job.zip"))
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewMemory(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Upload(ctx, "b", "exports/1.zip", strings.NewReader("abc"), 3, "application/zip"))
	got, err := store.GetObject(ctx, "b", "exports/1.zip")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, store.Len())

	u, err := store.PresignURL(ctx, "b", "exports/1.zip", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory://b/exports/1.zip?expires=86400", u)

	require.NoError(t, store.DeleteObject(ctx, "b", "exports/1.zip"))
	_, err = store.GetObject(ctx, "b", "exports/1.zip")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(context.Background(), Config{Type: "FTP"})
	assert.Error(t, err)
}

func TestProgressReader(t *testing.T) {
	data := strings.Repeat("x", 3*progressStep+10)

	var reports [][2]int64
	r := NewProgressReader(strings.NewReader(data), -1, func(loaded, total int64) {
		reports = append(reports, [2]int64{loaded, total})
	})

	store, err := NewMemory(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Upload(context.Background(), "b", "k", r, -1, ""))

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.Equal(t, int64(len(data)), last[0])
	assert.Equal(t, int64(-1), last[1])
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i][0], reports[i-1][0])
	}
	assert.Equal(t, int64(len(data)), r.Loaded())
}
