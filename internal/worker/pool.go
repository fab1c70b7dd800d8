package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/engine"
)

type task struct {
	job   engine.DeliveryJob
	batch *batch
}

// batch collects the outcomes of one Dispatch call.
type batch struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	summary engine.Summary
}

func (b *batch) run(ctx context.Context, d *Deliverer, job engine.DeliveryJob) {
	defer b.wg.Done()
	outcomes := d.Deliver(ctx, job)

	b.mu.Lock()
	for _, o := range outcomes {
		b.summary.Record(o)
	}
	b.mu.Unlock()
}

// Pool manages a fixed number of worker goroutines that process delivery jobs.
// It implements engine.Dispatcher.
type Pool struct {
	numWorkers int
	tasks      chan task
	deliverer  *Deliverer
	logger     *zap.Logger
	wg         sync.WaitGroup

	mu      sync.RWMutex
	running bool
}

func NewPool(numWorkers int, deliverer *Deliverer, logger *zap.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan task, numWorkers*2),
		deliverer:  deliverer,
		logger:     logger,
	}
}

// Start launches the workers. They exit when Stop closes the task channel.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", zap.Int("num_workers", p.numWorkers))
}

// Stop waits for queued jobs to finish and shuts the workers down.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Dispatch runs every job and blocks until all of them have finished. Jobs are
// delivered inline when the pool is not running, so no attempt is ever skipped.
func (p *Pool) Dispatch(ctx context.Context, jobs []engine.DeliveryJob) engine.Summary {
	b := &batch{}
	b.wg.Add(len(jobs))

	p.mu.RLock()
	running := p.running
	for _, job := range jobs {
		if running {
			p.tasks <- task{job: job, batch: b}
		} else {
			b.run(ctx, p.deliverer, job)
		}
	}
	p.mu.RUnlock()

	b.wg.Wait()
	return b.summary
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for t := range p.tasks {
		t.batch.run(ctx, p.deliverer, t.job)
	}
}
