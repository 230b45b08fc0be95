// Package queue is the Queue Runtime: a Redis-list-based job consumer
// with a bounded worker pool and a graceful shutdown shape that mirrors
// the platform's own main-loop signal handling.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DeploymentsQueueKey  = "deployments"
	ServiceCleanupKey    = "service-cleanup"
	blockingPopTimeout   = 5 * time.Second
)

// Handler processes one raw job payload. A returned error is logged; it
// never stops the consumer loop, matching the broker's own retry/backoff
// ownership of failed jobs.
type Handler func(ctx context.Context, payload []byte) error

// Runtime polls one or more Redis lists with BLPOP and dispatches claimed
// jobs to a bounded worker pool.
type Runtime struct {
	client      *redis.Client
	logger      *slog.Logger
	concurrency int

	wg  sync.WaitGroup
	sem chan struct{}
}

// New returns a Runtime that processes up to concurrency jobs at once.
func New(client *redis.Client, logger *slog.Logger, concurrency int) *Runtime {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runtime{
		client:      client,
		logger:      logger,
		concurrency: concurrency,
		sem:         make(chan struct{}, concurrency),
	}
}

// Run blocks, polling queueKey with BLPOP and dispatching each popped
// payload to handler, until ctx is canceled. It then waits for in-flight
// handlers to finish before returning.
func (r *Runtime) Run(ctx context.Context, queueKey string, handler Handler) error {
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := r.client.BLPop(ctx, blockingPopTimeout, queueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			r.logger.Warn("queue poll failed", "queue", queueKey, "error", err)
			continue
		}

		if len(result) < 2 {
			continue
		}
		payload := []byte(result[1])

		r.sem <- struct{}{}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer func() { <-r.sem }()

			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if err := handler(jobCtx, payload); err != nil {
				r.logger.Error("job handler failed", "queue", queueKey, "error", err)
			}
		}()
	}
}

// Enqueue pushes payload onto queueKey for a consumer elsewhere to pick
// up; used by tests and by the cleanup scheduler's self-trigger.
func (r *Runtime) Enqueue(ctx context.Context, queueKey string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}
	return r.client.LPush(ctx, queueKey, data).Err()
}

// Shutdown waits up to deadline for in-flight handlers to finish.
func (r *Runtime) Shutdown(deadline time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deadline):
		r.logger.Warn("shutdown deadline exceeded, in-flight jobs abandoned")
	}
}
