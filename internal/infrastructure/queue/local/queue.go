// Package local is an in-process request queue for single-binary
// deployments.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

const defaultBuffer = 256

type Queue struct {
	ch      chan string
	workers int
	once    sync.Once
	closed  chan struct{}
}

func New(buffer, workers int) *Queue {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		ch:      make(chan string, buffer),
		workers: workers,
		closed:  make(chan struct{}),
	}
}

func (q *Queue) PublishRequest(ctx context.Context, requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "local publish", fmt.Errorf("request id is required"))
	}
	select {
	case <-q.closed:
		return domain.WrapError(domain.ErrTemporary, "local publish", fmt.Errorf("queue closed"))
	default:
	}
	select {
	case <-q.closed:
		return domain.WrapError(domain.ErrTemporary, "local publish", fmt.Errorf("queue closed"))
	case q.ch <- requestID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeRequests runs handler on the configured number of workers until
// ctx is done or the queue is closed.
func (q *Queue) SubscribeRequests(ctx context.Context, handler func(context.Context, string) error) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.closed:
					return
				case id := <-q.ch:
					if err := handler(ctx, id); err != nil {
						slog.Error("queue_handler_failed", "request_id", id, "error", err)
					}
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}
