package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"label-matcher/feature/labels/matcher"
	"label-matcher/feature/labels/pipeline"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrClosed is returned by Dispatch once Shutdown has started.
var ErrClosed = errors.New("worker pool is shutting down")

// Job is one unit of pipeline work: either a new candidate or the key of an
// errored label to resume.
type Job struct {
	Candidate matcher.Candidate
	ResumeKey string
}

// Key identifies the label the job works on.
func (j Job) Key() string {
	if j.ResumeKey != "" {
		return j.ResumeKey
	}
	return j.Candidate.LabelKey
}

// Handler runs jobs; *pipeline.Pipeline implements it.
type Handler interface {
	Process(ctx context.Context, c matcher.Candidate) pipeline.Result
	Resume(ctx context.Context, labelKey string) pipeline.Result
}

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	handler Handler
	workers int
	timeout time.Duration
	logger  *zap.Logger

	jobs       chan Job
	closing    *atomic.Bool
	shutdownCh chan struct{}
	mu         sync.RWMutex
	wg         sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New creates a pool. timeout bounds each job.
func New(handler Handler, workers, queueSize int, timeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		handler:    handler,
		workers:    workers,
		timeout:    timeout,
		logger:     logger,
		jobs:       make(chan Job, queueSize),
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		pending:    make(map[string]struct{}),
	}
}

// Start launches the workers. Jobs run under ctx.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("workers", p.workers), zap.Int("queue", cap(p.jobs)))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Dispatch hands a job to the pool, blocking while the queue is full. A job
// for a label that is already queued or running is dropped.
func (p *Pool) Dispatch(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closing.Load() {
		return ErrClosed
	}
	if !p.reserve(job.Key()) {
		return nil
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		p.release(job.Key())
		return ctx.Err()
	}
}

// Pending returns the number of queued or running jobs.
func (p *Pool) Pending() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// Shutdown stops accepting jobs, lets the workers drain the queue and waits
// for them to exit.
func (p *Pool) Shutdown() {
	if !p.closing.CompareAndSwap(false, true) {
		return
	}
	// Wait for in-flight Dispatch calls to hand off their job.
	p.mu.Lock()
	close(p.shutdownCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) reserve(key string) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if _, ok := p.pending[key]; ok {
		return false
	}
	p.pending[key] = struct{}{}
	return true
}

func (p *Pool) release(key string) {
	p.pendingMu.Lock()
	delete(p.pending, key)
	p.pendingMu.Unlock()
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.run(ctx, job)
		case <-p.shutdownCh:
			drained := 0
			for {
				select {
				case job := <-p.jobs:
					p.run(ctx, job)
					drained++
				default:
					p.logger.Debug("Worker exiting", zap.Int("worker", id), zap.Int("drained", drained))
					return
				}
			}
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer p.release(job.Key())

	jobCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline job panicked", zap.String("label_key", job.Key()), zap.Any("panic", r))
		}
	}()

	if job.ResumeKey != "" {
		p.handler.Resume(jobCtx, job.ResumeKey)
		return
	}
	p.handler.Process(jobCtx, job.Candidate)
}
