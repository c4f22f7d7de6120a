// Package sweep fans maintenance work out to a bounded set of workers. It holds no timers:
// callers decide when a sweep runs.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull  = errors.New("sweep queue full")
	ErrPoolClosed = errors.New("sweep pool closed")
)

type Job struct {
	Kind     string
	TargetID string
}

type ProcessFunc func(ctx context.Context, job Job) error

type Config struct {
	MaxWorkers   int
	JobQueueSize int
}

type Report struct {
	Submitted int `json:"submitted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type Pool struct {
	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	process    ProcessFunc
	logger     *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight sync.WaitGroup
	once     sync.Once

	mu     sync.Mutex
	report Report
}

func NewPool(ctx context.Context, config Config, process ProcessFunc, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	p := &Pool{
		jobQueue:   make(chan Job, jobQueueSize),
		workerPool: make(chan chan Job, maxWorkers),
		maxWorkers: maxWorkers,
		process:    process,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	p.start()

	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.run)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Debug("sweep worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.drop(job)
					p.drainQueue()
					return
				}
			case <-p.ctx.Done():
				p.drop(job)
				p.drainQueue()
				return
			}
		case <-p.ctx.Done():
			p.drainQueue()
			return
		}
	}
}

// drainQueue counts every job still queued as failed so Wait can return after cancellation.
func (p *Pool) drainQueue() {
	for {
		select {
		case job := <-p.jobQueue:
			p.drop(job)
		default:
			return
		}
	}
}

func (p *Pool) run(job Job) {
	defer p.inflight.Done()

	err := p.process(p.ctx, job)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.report.Failed++
		p.logger.Error("sweep job failed",
			"kind", job.Kind,
			"target_id", job.TargetID,
			"error", err)
		return
	}
	p.report.Succeeded++
}

func (p *Pool) drop(job Job) {
	p.mu.Lock()
	p.report.Failed++
	p.mu.Unlock()
	p.inflight.Done()
	p.logger.Warn("sweep job dropped on shutdown", "kind", job.Kind, "target_id", job.TargetID)
}

// Submit never blocks; a full queue is reported to the caller.
func (p *Pool) Submit(job Job) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}

	p.inflight.Add(1)
	select {
	case p.jobQueue <- job:
		p.mu.Lock()
		p.report.Submitted++
		p.mu.Unlock()
		return nil
	default:
		p.inflight.Done()
		p.logger.Warn("sweep queue full, job skipped",
			"kind", job.Kind,
			"target_id", job.TargetID,
			"queue_capacity", cap(p.jobQueue))
		return ErrQueueFull
	}
}

// Wait blocks until every submitted job finished or the pool context ends, then stops the workers.
// Jobs that never started before cancellation are reported as failed.
func (p *Pool) Wait() Report {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-p.ctx.Done():
	}
	p.Shutdown()
	p.drainQueue()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
