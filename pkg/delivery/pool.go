/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package delivery

import (
	"context"
	"errors"
	"sync"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var (
	// ErrQueueFull is returned when the fallback queue cannot accept more
	// batches. Deliver reports it to the caller as a rejection.
	ErrQueueFull = errors.New("fallback queue is full")

	// ErrPoolStopped is returned when enqueueing after shutdown began.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// BatchHandler processes one batch. Workers call it sequentially per batch,
// so record order within a batch is preserved.
type BatchHandler func(ctx context.Context, batch *models.IngestBatch)

// WorkerPool consumes the in-process fallback queue with N workers. It
// implements Queue and lifecycle.Service.
type WorkerPool struct {
	handler   BatchHandler
	tasks     chan *models.IngestBatch
	workers   int
	logger    logger.Logger
	wg        sync.WaitGroup
	mu        sync.Mutex
	stopped   bool
	cancelRun context.CancelFunc
}

// NewWorkerPool creates a pool with the given worker count and queue depth.
// Zero values select defaults.
func NewWorkerPool(workers, queueSize int, handler BatchHandler, log logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = defaultWorkers
	}

	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &WorkerPool{
		handler: handler,
		tasks:   make(chan *models.IngestBatch, queueSize),
		workers: workers,
		logger:  log,
	}
}

// Start launches the workers.
func (p *WorkerPool) Start(_ context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancelRun = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)

		go p.run(runCtx)
	}

	p.logger.Info().Int("workers", p.workers).Msg("Fallback worker pool started")

	return nil
}

// Stop drains the queue and waits for workers to finish, bounded by ctx.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}

	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if p.cancelRun != nil {
			p.cancelRun()
		}

		return ctx.Err()
	}

	if p.cancelRun != nil {
		p.cancelRun()
	}

	p.logger.Info().Msg("Fallback worker pool stopped")

	return nil
}

// Enqueue implements Queue. It never blocks the calling request handler.
func (p *WorkerPool) Enqueue(batch *models.IngestBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- batch:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports the number of queued batches.
func (p *WorkerPool) Pending() int {
	return len(p.tasks)
}

func (p *WorkerPool) run(ctx context.Context) {
	defer p.wg.Done()

	for batch := range p.tasks {
		p.handler(ctx, batch)
	}
}
