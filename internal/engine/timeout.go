package engine

import (
	"context"
	"time"
)

// DefaultStepTimeout bounds a single step. Package installs on a cold cache
// are the slowest steps.
const DefaultStepTimeout = 60 * time.Minute

// WithTimeout wraps a context with a per-step timeout.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
