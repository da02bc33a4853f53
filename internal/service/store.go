package service

import (
	"context"
	"time"
)

const defaultStoreTimeout = 10 * time.Second

// boundedContext caps a single store call. Every store round trip made by a
// service goes through it.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
