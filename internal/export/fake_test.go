package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	apperrors "github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/notify"
	"github.com/webitel/rocrate-exporter/internal/rocrate"
)

const (
	collectionID = "https://repo.example/repository/C"
	item1ID      = "https://repo.example/repository/C/1"
	item2ID      = "https://repo.example/repository/C/2"
	item3ID      = "https://repo.example/repository/C/3"
)

// fakeContent serves entities, crates and files from memory.
type fakeContent struct {
	mu            sync.Mutex
	entities      map[string]*model.Entity
	crates        map[string]rocrate.Crate
	files         map[string]string
	broken        map[string]string
	metadataCalls map[string]int
	opened        []string
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		entities:      make(map[string]*model.Entity),
		crates:        make(map[string]rocrate.Crate),
		files:         make(map[string]string),
		broken:        make(map[string]string),
		metadataCalls: make(map[string]int),
	}
}

func (f *fakeContent) addItem(itemID, parentID string, children ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &model.Entity{ID: itemID}
	if parentID != "" {
		e.MemberOf = &model.Reference{ID: parentID}
	}
	f.entities[itemID] = e
	f.crates[itemID] = crateOf(itemID, children...)
}

func (f *fakeContent) addCollection(id string, items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crates[id] = crateOf(id, items...)
}

// setFile makes a file downloadable; unknown files fail.
func (f *fakeContent) setFile(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id] = body
}

// breakFile makes a file yield partial and then fail with errConnReset.
func (f *fakeContent) breakFile(id, partial string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken[id] = partial
}

var errConnReset = errors.New("connection reset")

func crateOf(rootID string, children ...string) rocrate.Crate {
	parts := make([]any, 0, len(children))
	graph := []any{
		map[string]any{"@id": rocrate.MetadataFileName, "about": map[string]any{"@id": rootID}},
	}
	root := map[string]any{"@id": rootID, "@type": "Dataset"}
	graph = append(graph, root)
	for _, c := range children {
		parts = append(parts, map[string]any{"@id": c})
		graph = append(graph, map[string]any{"@id": c, "@type": "File"})
	}
	root["hasPart"] = parts
	return rocrate.Crate{"@graph": graph}
}

func (f *fakeContent) GetEntityMetadata(_ context.Context, entityID, _ string) (*model.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataCalls[entityID]++
	e, ok := f.entities[entityID]
	if !ok {
		return nil, &apperrors.RemoteFetchError{Op: "get entity metadata", Status: 404}
	}
	return e, nil
}

func (f *fakeContent) GetEntityProvenance(_ context.Context, entityID, _ string) (rocrate.Crate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.crates[entityID]
	if !ok {
		return nil, &apperrors.RemoteFetchError{Op: "get ro-crate metadata", Status: 404}
	}
	return c, nil
}

func (f *fakeContent) body(fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, fileID)
	b, ok := f.files[fileID]
	if !ok {
		return "", &apperrors.RemoteFetchError{Op: "download file", Status: 500}
	}
	return b, nil
}

func (f *fakeContent) OpenFileStream(_ context.Context, fileID, _ string) io.ReadCloser {
	return &fakeStream{open: func() (io.Reader, error) {
		f.mu.Lock()
		partial, isBroken := f.broken[fileID]
		f.mu.Unlock()
		if isBroken {
			return io.MultiReader(strings.NewReader(partial), errReader{errConnReset}), nil
		}
		b, err := f.body(fileID)
		if err != nil {
			return nil, err
		}
		return strings.NewReader(b), nil
	}}
}

func (f *fakeContent) DownloadFileToPath(_ context.Context, fileID, _, dst string) (int64, error) {
	f.mu.Lock()
	_, isBroken := f.broken[fileID]
	f.mu.Unlock()
	if isBroken {
		return 0, errConnReset
	}
	b, err := f.body(fileID)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	return int64(len(b)), os.WriteFile(dst, []byte(b), 0o644)
}

type fakeStream struct {
	open func() (io.Reader, error)
	r    io.Reader
	err  error
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.r == nil && s.err == nil {
		s.r, s.err = s.open()
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.r.Read(p)
}

func (s *fakeStream) Close() error { return nil }

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// recordingSender keeps every message it was asked to send.
type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Message
	fail bool
}

func (s *recordingSender) Send(_ context.Context, _ string, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("mail relay down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.sent...)
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = b
	}
	return out
}

func hasPartOf(t *testing.T, data []byte) []string {
	t.Helper()
	c, err := rocrate.Parse(data)
	require.NoError(t, err)
	rootID, ok := c.RootID()
	require.True(t, ok)
	root, ok := c.Node(rootID)
	require.True(t, ok)
	parts, _ := rocrate.HasPart(root)
	return parts
}

func fileInfo(id, itemID string, size int64) model.ExportFileInfo {
	return model.ExportFileInfo{
		ID:       id,
		Filename: filepath.Base(id),
		Size:     size,
		MemberOf: model.Reference{ID: itemID},
	}
}
