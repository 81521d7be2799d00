package ledger

import (
	"context"
	"errors"
	"time"
)

const (
	MaxRetries = 3
	RetryDelay = 10 * time.Millisecond
)

// WithRetry runs fn again when it fails with ErrConcurrentUpdate. fn must be
// a complete unit of work, normally one database transaction.
func WithRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < MaxRetries; i++ {
		err = fn()
		if !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryDelay * time.Duration(i+1)):
		}
	}
	return err
}
