package usecase

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
)

// WriteJob is a single best-effort persistence call. Jobs sharing a Key run
// one at a time in submission order.
type WriteJob struct {
	Kind string
	Key  string
	Fn   func(ctx context.Context) error
}

// Writer drains best-effort writes through bounded per-worker lanes. A full
// lane drops the write; failures are logged and counted, never returned to the caller.
type Writer struct {
	lanes   []chan WriteJob
	size    int
	next    atomic.Uint64
	workers int
	timeout time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

type WriterOption func(*Writer)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.size = n
		}
	}
}

// WithWorkers sets the number of draining goroutines.
func WithWorkers(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithWriteTimeout bounds every write.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func NewWriter(metrics domrepo.Metrics, l *applogger.Logger, opts ...WriterOption) *Writer {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	w := &Writer{
		size:    1024,
		workers: 2,
		timeout: 2 * time.Second,
		metrics: metrics,
		l:       l,
	}
	for _, opt := range opts {
		opt(w)
	}
	// total capacity is split across lanes, rounded up
	per := (w.size + w.workers - 1) / w.workers
	w.lanes = make([]chan WriteJob, w.workers)
	for i := range w.lanes {
		w.lanes[i] = make(chan WriteJob, per)
	}
	return w
}

// Start launches the workers. It is safe to call more than once.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.closed {
		return
	}
	w.started = true
	for _, lane := range w.lanes {
		w.wg.Add(1)
		go w.run(lane)
	}
}

// Submit enqueues job without blocking. It reports whether the job was accepted.
func (w *Writer) Submit(job WriteJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.metrics.RecordError("writer_closed")
		return false
	}
	if job.Key != "" {
		if w.offer(w.lanes[laneOf(job.Key, len(w.lanes))], job) {
			return true
		}
	} else {
		start := int(w.next.Add(1) % uint64(len(w.lanes)))
		for i := range w.lanes {
			if w.offer(w.lanes[(start+i)%len(w.lanes)], job) {
				return true
			}
		}
	}
	w.metrics.RecordError("writer_drop")
	w.l.Warn("best-effort write dropped: queue full",
		applogger.String("kind", job.Kind),
		applogger.String("key", job.Key),
		applogger.Int("capacity", w.capacity()),
	)
	return false
}

func (w *Writer) offer(lane chan WriteJob, job WriteJob) bool {
	select {
	case lane <- job:
		return true
	default:
		return false
	}
}

func laneOf(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func (w *Writer) capacity() int {
	n := 0
	for _, lane := range w.lanes {
		n += cap(lane)
	}
	return n
}

// Depth returns the number of queued writes.
func (w *Writer) Depth() int {
	n := 0
	for _, lane := range w.lanes {
		n += len(lane)
	}
	return n
}

// Close stops accepting writes and drains what is queued, bounded by ctx.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, lane := range w.lanes {
		close(lane)
	}
	started := w.started
	w.mu.Unlock()

	if !started {
		// drain inline so queued writes are not lost
		for _, lane := range w.lanes {
			for job := range lane {
				w.do(job)
			}
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run(lane <-chan WriteJob) {
	defer w.wg.Done()
	for job := range lane {
		w.do(job)
	}
}

func (w *Writer) do(job WriteJob) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := job.Fn(ctx); err != nil {
		w.metrics.RecordError("writer_" + job.Kind)
		w.l.Warn("best-effort write failed",
			applogger.String("kind", job.Kind),
			applogger.Error(err),
		)
		return
	}
	w.metrics.RecordLatency("write_"+job.Kind, time.Since(start).Seconds())
}
