package app

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
)

const (
	defaultQueueSize = 64
	drainTimeout     = 30 * time.Second
)

// jobRunner executes one export job to a terminal state.
type jobRunner interface {
	Run(ctx context.Context, job model.ExportJobMessage)
}

// workerPool is the in-process handoff between submissions and the export
// pipeline. Dispatch never blocks.
type workerPool struct {
	runner jobRunner
	jobs   chan model.ExportJobMessage

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newWorkerPool(r jobRunner, queueSize int) *workerPool {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &workerPool{
		runner: r,
		jobs:   make(chan model.ExportJobMessage, queueSize),
		cancel: func() {},
	}
}

// Dispatch queues job. It reports false when the queue is full or stopped.
func (p *workerPool) Dispatch(job model.ExportJobMessage) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Start launches background workers to process export jobs concurrently.
// If too many workers are configured, the number is limited based on available CPU cores.
func (p *workerPool) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	maxWorkers := runtime.NumCPU() * 2
	if numWorkers > maxWorkers {
		numWorkers = maxWorkers
	}

	ctx, p.cancel = context.WithCancel(ctx)
	slog.InfoContext(ctx, "rocrate_exporter.app.starting_export_workers", slog.Int("count", numWorkers))

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i+1)
	}
}

func (p *workerPool) work(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			slog.DebugContext(ctx, "rocrate_exporter.app.job_picked",
				slog.Int("worker_id", workerID),
				slog.String("job_id", job.JobID),
			)
			p.runner.Run(ctx, job)
		}
	}
}

// Stop rejects new jobs and lets the workers finish queued ones. After timeout
// running jobs are cancelled.
func (p *workerPool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		<-done
		return errors.New("export workers did not drain in time",
			errors.WithID("app.worker.stop.drain_timeout"),
		)
	}
}
