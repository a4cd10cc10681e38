package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zip"
)

// Producer describes how to obtain the bytes of an entry. It is only called when
// the writer is ready to consume them.
type Producer func(ctx context.Context) (io.ReadCloser, error)

// spoolMemoryLimit is how much of an entry is held in memory before it spills
// to a temporary file.
const spoolMemoryLimit = 1 << 20

// ProgressFunc receives archive byte counters after each entry.
type ProgressFunc func(written, processed int64)

// Writer appends entries to a zip stream one at a time.
type Writer struct {
	zw         *zip.Writer
	out        *countingWriter
	processed  atomic.Int64
	entries    int
	onProgress ProgressFunc
	now        func() time.Time

	spoolDir   string
	spoolLimit int
}

func NewWriter(w io.Writer) *Writer {
	out := &countingWriter{w: w}
	return &Writer{zw: zip.NewWriter(out), out: out, now: time.Now, spoolLimit: spoolMemoryLimit}
}

// SpoolDir sets where AddStream keeps entries that outgrow memory. The system
// temp dir is used when unset.
func (w *Writer) SpoolDir(dir string) {
	w.spoolDir = dir
}

// OnProgress registers fn to be called after each entry.
func (w *Writer) OnProgress(fn ProgressFunc) {
	w.onProgress = fn
}

// BytesWritten is the number of compressed bytes emitted so far.
func (w *Writer) BytesWritten() int64 { return w.out.n.Load() }

// BytesProcessed is the number of uncompressed entry bytes consumed so far.
func (w *Writer) BytesProcessed() int64 { return w.processed.Load() }

// Entries is the number of entries added.
func (w *Writer) Entries() int { return w.entries }

func (w *Writer) header(path string) *zip.FileHeader {
	return &zip.FileHeader{Name: path, Method: zip.Deflate, Modified: w.now()}
}

// AddBuffer writes an in-memory entry.
func (w *Writer) AddBuffer(path string, data []byte) error {
	entry, err := w.zw.CreateHeader(w.header(path))
	if err != nil {
		return fmt.Errorf("create entry %s: %w", path, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", path, err)
	}
	w.processed.Add(int64(len(data)))
	w.entries++
	w.progress()
	return nil
}

// AddStream reads the whole producer into a spool and only then adds it as an
// entry, so a source that fails at any point leaves no entry behind. At most one
// entry is spooled at a time.
func (w *Writer) AddStream(ctx context.Context, path string, open Producer) (int64, error) {
	rc, err := open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	sp := &spool{dir: w.spoolDir, limit: w.spoolLimit}
	defer sp.Close()

	src := bufio.NewReaderSize(&ctxReader{ctx: ctx, r: rc}, 32<<10)
	if _, err := io.Copy(sp, src); err != nil {
		return 0, err
	}
	return w.addSpooled(path, sp)
}

// AddLocal adds a file that is already on disk without spooling it again.
func (w *Writer) AddLocal(ctx context.Context, path, name string) (int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	entry, err := w.zw.CreateHeader(w.header(path))
	if err != nil {
		return 0, fmt.Errorf("create entry %s: %w", path, err)
	}
	w.entries++
	n, err := io.Copy(entry, &ctxReader{ctx: ctx, r: f})
	w.processed.Add(n)
	w.progress()
	if err != nil {
		return n, fmt.Errorf("write entry %s: %w", path, err)
	}
	return n, nil
}

func (w *Writer) addSpooled(path string, sp *spool) (int64, error) {
	body, err := sp.reader()
	if err != nil {
		return 0, fmt.Errorf("rewind entry %s: %w", path, err)
	}
	entry, err := w.zw.CreateHeader(w.header(path))
	if err != nil {
		return 0, fmt.Errorf("create entry %s: %w", path, err)
	}
	w.entries++
	n, err := io.Copy(entry, body)
	w.processed.Add(n)
	w.progress()
	if err != nil {
		return n, fmt.Errorf("write entry %s: %w", path, err)
	}
	return n, nil
}

// Close writes the central directory. The underlying writer is not closed.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	w.progress()
	return nil
}

func (w *Writer) progress() {
	if w.onProgress != nil {
		w.onProgress(w.BytesWritten(), w.BytesProcessed())
	}
}

type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// spool buffers one entry in memory and moves it to a temporary file once it
// grows past limit.
type spool struct {
	dir   string
	limit int
	buf   bytes.Buffer
	file  *os.File
}

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.buf.Len()+len(p) <= s.limit {
		return s.buf.Write(p)
	}
	if s.file == nil {
		f, err := os.CreateTemp(s.dir, "rocrate-entry-*")
		if err != nil {
			return 0, fmt.Errorf("spool entry: %w", err)
		}
		s.file = f
		if _, err := s.buf.WriteTo(f); err != nil {
			return 0, fmt.Errorf("spool entry: %w", err)
		}
	}
	return s.file.Write(p)
}

func (s *spool) reader() (io.Reader, error) {
	if s.file == nil {
		return &s.buf, nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.file, nil
}

// Close drops the spooled data and removes the temporary file, if any.
func (s *spool) Close() error {
	s.buf.Reset()
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	cerr := s.file.Close()
	s.file = nil
	if err := os.Remove(name); err != nil {
		return err
	}
	return cerr
}
