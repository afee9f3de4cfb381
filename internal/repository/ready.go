package repository

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/timmy/memehub/internal/logger"
)

// WaitReady calls probe with Fibonacci backoff until it succeeds or
// attempts are exhausted. Used at startup while dependencies come up.
func WaitReady(ctx context.Context, name string, attempts uint64, probe func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(attempts, retry.NewFibonacci(500*time.Millisecond))
	b = retry.WithCappedDuration(5*time.Second, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := probe(ctx); err != nil {
			logger.CtxWarn(ctx, "%s not ready: %v", name, err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
