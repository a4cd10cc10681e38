package postgres

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
)

const testDSNEnv = "ROCRATE_EXPORTER_TEST_DSN"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	s := New(dsn)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHistoryRequiresOpenDatabase(t *testing.T) {
	s := New("postgres://localhost/none")
	_, err := s.History().GetExportHistory(context.Background(), "a@b.c", 1, 10)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, errors.Code(err))
	assert.Equal(t, "store.get_export_history", errors.ID(err))
}

func TestHistoryLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	h := s.History()
	email := uuid.NewString() + "@example.org"
	now := time.Now().UTC().Truncate(time.Millisecond)

	var jobs []string
	for i := 0; i < 3; i++ {
		job := uuid.NewString()
		jobs = append(jobs, job)
		id, err := h.InsertExportHistory(ctx, &model.NewExportHistory{
			JobID:     job,
			Email:     email,
			FileCount: 2,
			TotalSize: 100,
			Status:    model.ExportStatusPending,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.NotZero(t, id)
	}

	_, err := h.InsertExportHistory(ctx, &model.NewExportHistory{JobID: jobs[0], Email: email, Status: model.ExportStatusPending, CreatedAt: now})
	assert.Equal(t, http.StatusConflict, errors.Code(err))

	url := "https://bucket.example/exports/" + jobs[2] + ".zip"
	require.NoError(t, h.UpdateExportStatus(ctx, &model.UpdateExportStatus{
		JobID:       jobs[2],
		Status:      model.ExportStatusCompleted,
		FailedCount: 1,
		DownloadURL: &url,
	}))

	page, err := h.GetExportHistory(ctx, email, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.True(t, page.Next)
	// newest first
	assert.Equal(t, jobs[2], page.Data[0].JobID)
	assert.Equal(t, model.ExportStatusCompleted, page.Data[0].Status)
	assert.Equal(t, 1, page.Data[0].FailedCount)
	require.NotNil(t, page.Data[0].DownloadURL)
	assert.Equal(t, url, *page.Data[0].DownloadURL)
	assert.Nil(t, page.Data[1].DownloadURL)

	page, err = h.GetExportHistory(ctx, email, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.False(t, page.Next)

	require.NoError(t, s.Ping(ctx))
}
