package app

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/webitel/rocrate-exporter/config"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/service"
	"github.com/webitel/rocrate-exporter/internal/storage"
)

func contentServer(t *testing.T) *httptest.Server {
	t.Helper()
	crate := func(root string, parts ...string) map[string]any {
		hasPart := make([]any, 0, len(parts))
		for _, p := range parts {
			hasPart = append(hasPart, map[string]any{"@id": p})
		}
		return map[string]any{
			"@context": "https://w3id.org/ro/crate/1.1/context",
			"@graph": []any{
				map[string]any{"@id": "ro-crate-metadata.json", "about": map[string]any{"@id": root}},
				map[string]any{"@id": root, "hasPart": hasPart},
			},
		}
	}
	routes := map[string]any{
		"/entity/item-1":         map[string]any{"id": "item-1", "memberOf": map[string]any{"id": "coll-1"}},
		"/entity/coll-1":         map[string]any{"id": "coll-1"},
		"/entity/item-1/rocrate": crate("item-1", "item-1/a.txt", "item-1/b.txt"),
		"/entity/coll-1/rocrate": crate("coll-1", "item-1"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/file/item-1/a.txt":
			_, _ = w.Write([]byte("alpha"))
			return
		case "/file/item-1/b.txt":
			w.WriteHeader(http.StatusNotFound)
			return
		}
		doc, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(contentURL, mode string) *cfg.AppConfig {
	return &cfg.AppConfig{
		HTTP:     &cfg.HTTPConfig{Address: "127.0.0.1:0"},
		Consul:   &cfg.ConsulConfig{},
		Content:  &cfg.ContentConfig{BaseURL: contentURL, Timeout: 5 * time.Second},
		Storage:  &cfg.StorageConfig{Type: "MEMORY", Bucket: "exports", PresignExpiry: time.Hour},
		Email:    &cfg.EmailConfig{Provider: "log"},
		Redis:    &cfg.RedisConfig{},
		Database: &cfg.DatabaseConfig{},
		Export: &cfg.ExportConfig{
			Workers:         1,
			QueueSize:       4,
			Mode:            mode,
			Retention:       time.Hour,
			SweepInterval:   time.Minute,
			ItemConcurrency: 2,
		},
	}
}

func TestExportEndToEnd(t *testing.T) {
	for _, mode := range []string{"streaming", "staged"} {
		t.Run(mode, func(t *testing.T) {
			content := contentServer(t)
			conf := testConfig(content.URL, mode)
			conf.Export.ScratchDir = t.TempDir()

			application, err := New(conf, nil)
			require.NoError(t, err)

			started := make(chan error, 1)
			go func() { started <- application.Start(context.Background()) }()
			t.Cleanup(func() {
				_ = application.Stop()
				<-started
			})

			base := "http://" + application.server.Addr()
			body := `{"email": "user@example.org", "files": [
				{"id": "item-1/a.txt", "filename": "a.txt", "size": 5, "memberOf": {"id": "item-1"}},
				{"id": "item-1/b.txt", "filename": "b.txt", "size": 7, "memberOf": {"id": "item-1"}}
			]}`
			req, err := http.NewRequest(http.MethodPost, base+"/api/export", strings.NewReader(body))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer tok")
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			var submitted service.SubmitResult
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
			resp.Body.Close()
			require.Equal(t, http.StatusAccepted, resp.StatusCode)

			var st model.JobStatus
			require.Eventually(t, func() bool {
				resp, err := http.Get(fmt.Sprintf("%s/api/export/%s/status", base, submitted.JobID))
				if err != nil {
					return false
				}
				defer resp.Body.Close()
				st = model.JobStatus{}
				if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
					return false
				}
				return st.JobState != nil && st.Phase.Terminal()
			}, 5*time.Second, 20*time.Millisecond)

			require.Equal(t, model.PhaseComplete, st.Phase, st.ErrorMessage)
			assert.Equal(t, 1, st.DownloadedFiles)
			require.Len(t, st.FailedFiles, 1)
			assert.Equal(t, "b.txt", st.FailedFiles[0].Filename)
			assert.True(t, strings.HasPrefix(st.DownloadURL, "memory://exports/exports/"))

			blobs := application.Blobstore.(*storage.Memory)
			data, err := blobs.GetObject(context.Background(), "exports", "exports/"+submitted.JobID+".zip")
			require.NoError(t, err)
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			names := make([]string, 0, len(zr.File))
			for _, f := range zr.File {
				names = append(names, f.Name)
			}
			assert.ElementsMatch(t, []string{
				"item-1/a.txt",
				"item-1/ro-crate-metadata.json",
				"coll-1/ro-crate-metadata.json",
			}, names)

			resp, err = http.Get(base + "/health")
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}
