package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/scoring"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultBacklog          = 1024
	poolShutdownTimeout     = 30 * time.Second
)

// Sentinel errors returned by the pool.
var (
	ErrPoolClosed     = errors.New("worker pool is closed")
	ErrPoolNotStarted = errors.New("worker pool is not started")
)

// Scorer computes the score of one pair.
type Scorer interface {
	Pair(ctx context.Context, a, b model.Participant) model.PairScore
}

// Job scores one pair into a matrix.
type Job struct {
	ctx    context.Context //nolint:containedctx // each job carries its caller's context
	A, B   model.Participant
	Matrix *scoring.Matrix
	done   func()
}

// Worker processes pair jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a job channel.
type InMemoryWorker struct {
	jobs   <-chan Job
	scorer Scorer
	name   string

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(jobs <-chan Job, scorer Scorer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		jobs:     jobs,
		scorer:   scorer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		// Shutdown wins over queued jobs.
		select {
		case <-w.shutdown:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.process(job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process scores a single pair. A cancelled job is acknowledged without scoring.
func (w *InMemoryWorker) process(job Job) {
	start := time.Now()
	defer func() {
		latency := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordWorkerProcessingLatency(latency)
		job.done()
	}()

	if err := job.ctx.Err(); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "cancelled")
		return
	}

	ps := w.scorer.Pair(job.ctx, job.A, job.B)
	job.Matrix.Put(ps)
	metrics.RecordPairScore(float64(time.Since(start).Microseconds()) / 1000)
	if ps.DeadAirVetoApplied {
		metrics.RecordPairVeto("dead_air")
	}
	if ps.HumorClashVetoApplied {
		metrics.RecordPairVeto("humor_clash")
	}
}

// Pool fans pair jobs out to a fixed set of workers.
type Pool struct {
	workers []*InMemoryWorker
	jobs    chan Job
	scorer  Scorer
	backlog int

	mu      sync.RWMutex
	started bool
	closed  bool
	stop    context.CancelFunc
	quit    chan struct{}

	processed atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 selects a CPU-based default.
func NewPool(workerCount int, scorer Scorer, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		scorer:  scorer,
		backlog: defaultBacklog,
		quit:    make(chan struct{}),
		logger:  logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(pool)
	}
	pool.jobs = make(chan Job, pool.backlog)

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			pool.jobs,
			scorer,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(pool.logger),
		)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many pairs the pool has scored.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool. The workers keep running until
// Shutdown; ctx only contributes its values.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	p.stop = stop
	for _, worker := range p.workers {
		go worker.Run(runCtx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Build scores every pair of ps on the pool and returns the filled matrix.
// It returns ErrPoolClosed when the pool shuts down before the matrix is done.
func (p *Pool) Build(ctx context.Context, ps []model.Participant) (*scoring.Matrix, error) {
	p.mu.RLock()
	closed, started := p.closed, p.started
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}
	if !started {
		return nil, ErrPoolNotStarted
	}

	start := time.Now()
	m := scoring.NewMatrix()
	var wg sync.WaitGroup
	sent := 0
	var sendErr error
send:
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			wg.Add(1)
			job := Job{ctx: ctx, A: ps[i], B: ps[j], Matrix: m, done: wg.Done}
			select {
			case p.jobs <- job:
				sent++
			case <-ctx.Done():
				wg.Done()
				sendErr = ctx.Err()
				break send
			case <-p.quit:
				wg.Done()
				sendErr = ErrPoolClosed
				break send
			}
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolClosed
	}
	if sendErr != nil {
		return nil, sendErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.processed.Add(int64(sent))
	p.logger.Debug(ctx, "pair matrix built",
		logger.Int("participants", len(ps)),
		logger.Int("pairs", sent),
		logger.Duration("duration", time.Since(start)))
	return m, nil
}

// Shutdown stops accepting work, releases pending builds and waits for the
// workers to exit. The job channel stays open so that a concurrent Build
// never sends on a closed channel.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.quit)
	if p.stop != nil {
		p.stop()
	}
	p.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
