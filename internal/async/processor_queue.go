package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/pipeline"
)

// ProcessorQueue runs extraction jobs on a fixed pool of workers.
type ProcessorQueue struct {
	proc    Extractor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  func(Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOnDone receives every outcome. It is called from worker goroutines and
// must be safe for concurrent use.
func WithOnDone(fn func(Outcome)) Option {
	return func(q *ProcessorQueue) { q.onDone = fn }
}

func NewProcessorQueue(proc Extractor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := common.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	var opts []pipeline.ExtractOption
	if job.Debug {
		opts = append(opts, pipeline.WithDebug(true))
	}
	start := time.Now()
	resp, err := q.proc.Extract(ctx, job.Document, opts...)
	out := Outcome{Job: job, Response: resp, Err: err, Elapsed: time.Since(start)}

	if err != nil {
		q.logger.Error("queue.job.failed",
			"worker_id", workerID,
			"document_id", job.Document.ID,
			"label", job.Label,
			"error", err,
		)
	} else {
		q.logger.Info("queue.job.done",
			"worker_id", workerID,
			"document_id", resp.DocumentID,
			"label", job.Label,
			"document_confidence", resp.DocumentConfidence,
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
	}
	if q.onDone != nil {
		q.onDone(out)
	}
}

// Enqueue blocks while the queue is full, until ctx is done. Jobs without a
// document ID get one here so outcomes can be correlated.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Document.ID == uuid.Nil {
		job.Document.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "document_id", job.Document.ID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueued", "document_id", job.Document.ID, "label", job.Label)
		return nil
	default:
	}

	q.logger.Warn("queue.full.backpressure", "document_id", job.Document.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
