// Package workerpool adapts panjf2000/ants to the bounded pool the batch
// orchestrator submits answer tasks to.
package workerpool

import (
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

type Pool struct {
	pool *ants.Pool
}

// New creates a pool with size workers. Submit blocks while all workers are
// busy. A panicking task is logged and does not kill the worker.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p, err := ants.NewPool(size,
		ants.WithPanicHandler(func(r any) {
			slog.Error("worker_task_panic", "panic", fmt.Sprint(r))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Factory matches ports.WorkerPoolFactory.
func Factory(size int) (ports.WorkerPool, error) {
	return New(size)
}

func (p *Pool) Submit(task func()) error {
	if err := p.pool.Submit(task); err != nil {
		return fmt.Errorf("submit task: %w", err)
	}
	return nil
}

func (p *Pool) Release() {
	p.pool.Release()
}

func (p *Pool) Cap() int {
	return p.pool.Cap()
}
