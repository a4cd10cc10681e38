package storage

import (
	"io"
	"sync/atomic"
)

const progressStep = 1 << 20

// ProgressReader reports (loaded, total) as body is consumed, once per
// progressStep bytes and at EOF.
type ProgressReader struct {
	r        io.Reader
	total    int64
	loaded   atomic.Int64
	reported int64
	fn       func(loaded, total int64)
}

// NewProgressReader wraps r. total is -1 when the length is unknown.
func NewProgressReader(r io.Reader, total int64, fn func(loaded, total int64)) *ProgressReader {
	return &ProgressReader{r: r, total: total, fn: fn}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	loaded := p.loaded.Add(int64(n))
	if p.fn != nil && (loaded-p.reported >= progressStep || (err == io.EOF && loaded != p.reported)) {
		p.reported = loaded
		p.fn(loaded, p.total)
	}
	return n, err
}

// Loaded is the number of bytes read so far.
func (p *ProgressReader) Loaded() int64 { return p.loaded.Load() }
