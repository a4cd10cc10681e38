package content

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/webitel/rocrate-exporter/internal/errors"
)

func newTestClient(t *testing.T, h http.Handler, prefix string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+prefix, 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestGetEntityMetadata(t *testing.T) {
	var gotPath, gotAccept, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"id":"https://h/repository/C/1","memberOf":{"id":"https://h/repository/C","name":"C"}}`)
	}), "/api/")

	e, err := c.GetEntityMetadata(context.Background(), "https://h/repository/C/1", "tok")
	require.NoError(t, err)

	assert.Equal(t, "https://h/repository/C", e.MemberOfID())
	assert.Equal(t, "/api/entity/https:%2F%2Fh%2Frepository%2FC%2F1", gotPath)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestGetEntityProvenance(t *testing.T) {
	var gotAccept, gotAuth, gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/ld+json")
		_, _ = io.WriteString(w, `{"@graph":[{"@id":"ro-crate-metadata.json","about":{"@id":"./"}}]}`)
	}), "")

	crate, err := c.GetEntityProvenance(context.Background(), "item-1", "")
	require.NoError(t, err)

	root, ok := crate.RootID()
	assert.True(t, ok)
	assert.Equal(t, "./", root)
	assert.Equal(t, "/entity/item-1/rocrate", gotPath)
	assert.Equal(t, "application/ld+json", gotAccept)
	assert.Empty(t, gotAuth)
}

func TestRemoteFetchError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no access", http.StatusForbidden)
	}), "")

	_, err := c.GetEntityMetadata(context.Background(), "x", "tok")
	require.Error(t, err)

	var fe *apperrors.RemoteFetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.Status)
	assert.Contains(t, fe.Body, "no access")
	assert.Contains(t, err.Error(), "403 Forbidden")

	_, err = c.OpenFile(context.Background(), "f", "tok")
	require.ErrorAs(t, err, &fe)
}

func TestOpenFileStreamIsLazy(t *testing.T) {
	var hits atomic.Int32
	var gotAccept string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotAccept = r.Header.Get("Accept")
		assert.Equal(t, "/file/f1", r.URL.Path)
		_, _ = io.WriteString(w, "payload")
	}), "")

	s := c.OpenFileStream(context.Background(), "f1", "tok")
	assert.Equal(t, int32(0), hits.Load())

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, "payload", string(data))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "*/*", gotAccept)
}

func TestOpenFileStreamCloseWithoutRead(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), "")

	s := c.OpenFileStream(context.Background(), "f1", "")
	assert.NoError(t, s.Close())
	assert.Equal(t, int32(0), hits.Load())
}

func TestDownloadFileToPath(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/file/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "0123456789")
	}), "")

	dir := t.TempDir()
	dst := filepath.Join(dir, "host", "C", "1", "a.txt")

	n, err := c.DownloadFileToPath(context.Background(), "ok", "", dst)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	missing := filepath.Join(dir, "missing.txt")
	_, err = c.DownloadFileToPath(context.Background(), "missing", "", missing)
	require.Error(t, err)
	assert.NoFileExists(t, missing)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/api", time.Second)
	assert.Error(t, err)
}
