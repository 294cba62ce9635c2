package workerpool

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/angeloszaimis/static-server/internal/metrics"
)

// ErrPoolClosed is returned by Submit and Shutdown once shutdown has begun.
var ErrPoolClosed = errors.New("workerpool: pool is shut down")

// Job is one deferred unit of work. It runs on exactly one worker.
type Job func()

// entry is a queue slot. A nil job tells the worker that dequeues it to exit.
type entry struct {
	job Job
}

// Pool runs jobs on a fixed set of workers fed by a single FIFO queue.
type Pool struct {
	mutex    sync.Mutex
	notEmpty *sync.Cond
	queue    []entry
	closed   bool
	active   int

	workers []*worker
	wg      sync.WaitGroup

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Pool)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// New starts size workers and returns once all of them are waiting for
// work. It panics if size is less than one.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		panic(fmt.Sprintf("workerpool: size must be at least 1, got %d", size))
	}

	p := &Pool{
		workers: make([]*worker, 0, size),
		logger:  slog.Default(),
	}
	p.notEmpty = sync.NewCond(&p.mutex)

	for _, opt := range opts {
		opt(p)
	}

	var ready sync.WaitGroup
	ready.Add(size)

	for id := 0; id < size; id++ {
		w := &worker{id: id, pool: p}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go w.run(&ready)
	}

	ready.Wait()
	p.logger.Info("Worker pool started", slog.Int("workers", size))

	return p
}

// Submit enqueues job and returns without waiting for it to run.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return errors.New("workerpool: nil job")
	}

	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		p.metrics.JobRejected()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, entry{job: job})
	p.metrics.JobSubmitted()
	p.mutex.Unlock()

	p.notEmpty.Signal()

	return nil
}

// Shutdown stops accepting jobs, queues one termination entry per worker
// behind every job already submitted, and waits for all workers to exit.
func (p *Pool) Shutdown() error {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return ErrPoolClosed
	}
	p.closed = true

	p.logger.Info("Sending terminate message to all workers",
		slog.Int("workers", len(p.workers)),
		slog.Int("pending", len(p.queue)))

	for range p.workers {
		p.queue = append(p.queue, entry{})
	}
	p.mutex.Unlock()
	p.notEmpty.Broadcast()

	p.wg.Wait()
	p.logger.Info("All workers shut down")

	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Pending returns the number of jobs waiting in the queue.
func (p *Pool) Pending() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for _, e := range p.queue {
		if e.job != nil {
			n++
		}
	}
	return n
}

// Active returns the number of jobs currently running.
func (p *Pool) Active() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.active
}

// next blocks until an entry is available and removes it from the queue.
func (p *Pool) next() entry {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for len(p.queue) == 0 {
		p.notEmpty.Wait()
	}

	e := p.queue[0]
	p.queue[0] = entry{}
	p.queue = p.queue[1:]

	if e.job != nil {
		p.active++
		p.metrics.JobStarted()
	}

	return e
}

func (p *Pool) finished() {
	p.mutex.Lock()
	p.active--
	p.mutex.Unlock()
}

type worker struct {
	id   int
	pool *Pool
}

func (w *worker) run(ready *sync.WaitGroup) {
	defer w.pool.wg.Done()

	logger := w.pool.logger.With(slog.Int("worker", w.id))
	ready.Done()

	for {
		e := w.pool.next()
		if e.job == nil {
			logger.Debug("Worker was told to terminate")
			return
		}

		logger.Debug("Worker got a job; executing")
		w.execute(e.job, logger)
	}
}

// execute runs job outside the queue lock. A panic is logged and counted
// and the worker stays alive.
func (w *worker) execute(job Job, logger *slog.Logger) {
	start := time.Now()
	panicked := true

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		w.pool.finished()
		w.pool.metrics.JobFinished(time.Since(start), panicked)
	}()

	job()
	panicked = false
}
