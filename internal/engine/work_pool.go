package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"quant-lab/internal/infrastructure"

	"go.uber.org/zap"
)

// Job is one unit of pool work, identified by its index.
type Job func(ctx context.Context, index int) error

// WorkerPool runs a fixed number of workers over indexed jobs.
type WorkerPool struct {
	workerCount int
	logger      *zap.Logger
}

// NewWorkerPool sizes the pool to the number of CPUs when workerCount <= 0.
func NewWorkerPool(workerCount int, logger *zap.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{
		workerCount: workerCount,
		logger:      logger,
	}
}

func (p *WorkerPool) Size() int {
	return p.workerCount
}

// Run executes job for every index in [0, n) and blocks until all workers have
// returned. The first error cancels the remaining jobs and is returned.
func (p *WorkerPool) Run(ctx context.Context, n int, job Job) error {
	if n <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobQueue := make(chan int, n)
	for i := 0; i < n; i++ {
		jobQueue <- i
	}
	close(jobQueue)

	workers := p.workerCount
	if workers > n {
		workers = n
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := p.worker(ctx, id, jobQueue, job); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(id)
	}
	p.logger.Debug("started worker pool", zap.Int("workers", workers), zap.Int("jobs", n))

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (p *WorkerPool) worker(ctx context.Context, id int, jobQueue <-chan int, job Job) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case index, ok := <-jobQueue:
			if !ok {
				return nil
			}
			if err := p.process(ctx, id, index, job); err != nil {
				return err
			}
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, workerID, index int, job Job) (err error) {
	infrastructure.WorkerPoolBusy.Inc()
	defer infrastructure.WorkerPoolBusy.Dec()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %d panicked: %v", index, r)
		}
	}()

	p.logger.Debug("worker processing job",
		zap.Int("worker_id", workerID),
		zap.Int("job", index),
	)
	return job(ctx, index)
}
