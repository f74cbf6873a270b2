package playback

import (
	"context"
	"sync"
	"time"
)

// Job is one captured window waiting for a pass.
type Job struct {
	Seq      uint64    // assigned by Submit, increasing in submission order
	Samples  []float32 // chunk-driven jobs
	Position float64   // playback-driven jobs, seconds
	Captured time.Time
}

// ProcessFunc runs one pass for a job.
type ProcessFunc func(ctx context.Context, job Job) Result

// ResultFunc receives results in submission order.
type ResultFunc func(job Job, res Result)

// Worker runs passes for one stream on a single goroutine. At most one pass
// is in flight and at most one job waits; a newer submission replaces the
// waiting job, which is counted as dropped.
type Worker struct {
	process  ProcessFunc
	onResult ResultFunc
	session  *Session

	mu      sync.Mutex
	pending *Job
	seq     uint64
	dropped int64
	busy    bool
	closed  bool
	idle    *sync.Cond

	wake chan struct{}
	done chan struct{}
	ctx  context.Context
}

// NewWorker starts a worker. session, when set, receives the dropped-window
// metrics. ctx is handed to every pass; cancelling it stops the worker
// after the pass in flight.
func NewWorker(ctx context.Context, session *Session, process ProcessFunc, onResult ResultFunc) *Worker {
	w := &Worker{
		process:  process,
		onResult: onResult,
		session:  session,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		ctx:      ctx,
	}
	w.idle = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Submit queues job, replacing any job still waiting. It reports false
// when the worker is closed.
func (w *Worker) Submit(job Job) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.seq++
	job.Seq = w.seq
	if job.Captured.IsZero() {
		job.Captured = time.Now()
	}
	if w.pending != nil {
		w.dropped++
		if w.session != nil {
			w.session.metrics.RecordWindowDropped()
			w.session.logger.Debug().Uint64("seq", w.pending.Seq).Msg("Dropping stale window")
		}
	}
	w.pending = &job

	// Sent under the lock so Close cannot close wake in between.
	select {
	case w.wake <- struct{}{}:
	default:
	}
	w.mu.Unlock()
	return true
}

// Dropped returns the number of jobs replaced before they ran.
func (w *Worker) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Busy reports whether a pass is running or a job is waiting.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy || w.pending != nil
}

// Wait blocks until no pass is running and no job is waiting.
func (w *Worker) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for (w.busy || w.pending != nil) && !w.closed {
		w.idle.Wait()
	}
}

// Close stops accepting jobs, discards the waiting one and waits for the
// pass in flight.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		if w.pending != nil {
			w.dropped++
			w.pending = nil
		}
		close(w.wake)
	}
	w.idle.Broadcast()
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			w.mu.Lock()
			w.closed = true
			w.pending = nil
			w.idle.Broadcast()
			w.mu.Unlock()
			return
		case _, ok := <-w.wake:
			if !ok {
				return
			}
		}

		for {
			w.mu.Lock()
			job := w.pending
			w.pending = nil
			if job == nil || w.closed {
				w.busy = false
				w.idle.Broadcast()
				w.mu.Unlock()
				break
			}
			w.busy = true
			w.mu.Unlock()

			res := w.process(w.ctx, *job)
			if w.onResult != nil {
				w.onResult(*job, res)
			}
		}
	}
}
