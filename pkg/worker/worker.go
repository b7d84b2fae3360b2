package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimasrn/daily-mass/pkg/logger"
)

var ErrQueueFull = errors.New("worker queue is full")
var ErrStopped = errors.New("worker manager is stopped")

// Job is a named unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// WorkerManager runs jobs on a fixed set of goroutines fed by a buffered
// channel. Jobs are fire-and-forget: errors and panics end up in the log,
// never with the caller.
type WorkerManager struct {
	numberOfWorker int
	jobChannel     chan Job
	errHandler     func(job Job, err error)

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	waiter  sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan Job, bufferSize),
		errHandler: func(job Job, err error) {
			logger.Error("[worker] job failed", "job", job.Name, "error", err)
		},
	}
}

// SetErrorHandler replaces the default log sink for failed jobs.
func (w *WorkerManager) SetErrorHandler(fn func(job Job, err error)) {
	w.errHandler = fn
}

// Pending reports jobs queued but not yet picked up by a worker.
func (w *WorkerManager) Pending() int {
	return len(w.jobChannel)
}

// Enqueue hands a job to the pool without blocking.
func (w *WorkerManager) Enqueue(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.jobChannel <- job:
		return nil
	default:
		logger.Warn("[worker] queue full, dropping job", "job", job.Name)
		return ErrQueueFull
	}
}

// Start launches the workers. They run until ctx is done or Exit is called.
func (w *WorkerManager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job, ok := <-w.jobChannel:
					if !ok {
						return
					}
					w.do(ctx, index, job)
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	logger.Info("[worker] started", "workers", w.numberOfWorker)
}

func (w *WorkerManager) do(ctx context.Context, index int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.errHandler(job, fmt.Errorf("panic in worker %d: %v", index, r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		w.errHandler(job, err)
	}
}

// Exit stops accepting jobs, lets the workers drain what is already queued
// and waits for them.
func (w *WorkerManager) Exit() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.jobChannel)
	w.mu.Unlock()

	logger.Info("[worker] Exit() is called, draining jobs", "pending", w.Pending())
	w.waiter.Wait()
	if w.cancel != nil {
		w.cancel()
	}
}
