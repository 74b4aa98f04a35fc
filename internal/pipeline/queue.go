package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/chunk"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/logging"
)

const (
	DefaultQueueSize = 16
	DefaultWorkers   = 2
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("chunk queue closed")

// Handler processes one chunk for a session.
type Handler interface {
	Process(ctx context.Context, sc *SessionContext, c chunk.Chunk) Outcome
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *SessionContext, chunk.Chunk) Outcome

func (f HandlerFunc) Process(ctx context.Context, sc *SessionContext, c chunk.Chunk) Outcome {
	return f(ctx, sc, c)
}

// Queue is a bounded chunk queue drained by a fixed worker pool. Workers run
// chunks concurrently, so completions land in arrival order, not capture order.
// Submit blocks while the queue is full.
type Queue struct {
	handler Handler
	sc      *SessionContext
	workers int
	logger  *slog.Logger

	jobs chan chunk.Chunk
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	onOutcome func(Outcome)
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithOutcomeHook calls fn after every processed chunk, from the worker goroutine.
func WithOutcomeHook(fn func(Outcome)) QueueOption {
	return func(q *Queue) { q.onOutcome = fn }
}

// NewQueue builds a queue for one session. Non-positive sizes use the defaults.
func NewQueue(handler Handler, sc *SessionContext, size int, workers int, logger *slog.Logger, opts ...QueueOption) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	q := &Queue{
		handler: handler,
		sc:      sc,
		workers: workers,
		logger:  logging.OrDiscard(logger),
		jobs:    make(chan chunk.Chunk, size),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. ctx is handed to every Process call.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
	go func() {
		q.wg.Wait()
		close(q.done)
	}()
}

// Submit enqueues c without waiting for it to be processed.
func (q *Queue) Submit(ctx context.Context, c chunk.Chunk) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting chunks. Queued chunks are still processed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
	if !q.started {
		close(q.done)
	}
}

// Wait blocks until every queued chunk is processed after Close, or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many chunks are waiting for a worker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for c := range q.jobs {
		out := q.handler.Process(ctx, q.sc, c)
		q.logger.Debug("chunk processed",
			"session_id", q.sc.SessionID,
			"chunk_seq", c.Seq,
			"stage", string(out.Stage),
			"entries", len(out.Entries),
		)
		if q.onOutcome != nil {
			q.onOutcome(out)
		}
	}
}
