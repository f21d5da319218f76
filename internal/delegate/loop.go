package delegate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned by Submit once the loop has been stopped.
var ErrLoopStopped = errors.New("write loop stopped")

// job is one queued request awaiting the handler.
type job struct {
	ctx   context.Context
	req   Request
	reply chan Result // buffered, size 1
}

// jobQueue is a thread-safe FIFO queue of jobs.
//
// The queue is unbounded so transports never block on enqueue. It signals
// through a buffered channel to allow context-aware waiting in Run.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends j. Returns false if the queue is closed.
func (q *jobQueue) enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue pops the front job without blocking.
func (q *jobQueue) tryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = job{} // release references for GC
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

func (q *jobQueue) wait() <-chan struct{} {
	return q.signal
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// close wakes any waiter; further enqueues fail.
func (q *jobQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Loop is the coordinator's single-writer request loop.
//
// Transports call Submit from any goroutine; Run processes requests in
// arrival order on exactly one goroutine, so the document store only ever
// sees one writer.
//
// A request is processed even if its submitter has stopped waiting: once
// delivered to the coordinator, a write may land after the requester has
// reported ReasonTransportFailure.
type Loop struct {
	handler *Handler
	queue   *jobQueue
	logger  *slog.Logger
}

// NewLoop creates a loop that serves requests with h.
func NewLoop(h *Handler) *Loop {
	return &Loop{
		handler: h,
		queue:   newJobQueue(),
		logger:  h.logger,
	}
}

// Submit enqueues req and waits for the handler's Result or ctx.
func (l *Loop) Submit(ctx context.Context, req Request) (Result, error) {
	j := job{ctx: context.WithoutCancel(ctx), req: req, reply: make(chan Result, 1)}
	if !l.queue.enqueue(j) {
		return Result{}, ErrLoopStopped
	}

	select {
	case res := <-j.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run processes queued requests until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("write loop starting")

	for {
		if j, ok := l.queue.tryDequeue(); ok {
			j.reply <- l.handler.Handle(j.ctx, j.req)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Info("write loop stopping: context cancelled")
			l.queue.close()
			l.drain()
			return ctx.Err()

		case <-l.queue.wait():
			// The signal channel closes with the queue; an empty closed
			// queue means Stop was called.
			if l.queue.len() == 0 && l.isClosed() {
				l.logger.Info("write loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it is drained.
func (l *Loop) Stop() {
	l.queue.close()
}

func (l *Loop) isClosed() bool {
	l.queue.mu.Lock()
	defer l.queue.mu.Unlock()
	return l.queue.closed
}

// drain answers requests still queued at shutdown.
func (l *Loop) drain() {
	for {
		j, ok := l.queue.tryDequeue()
		if !ok {
			return
		}
		j.reply <- Fail(ReasonTransportFailure)
	}
}
