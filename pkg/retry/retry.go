package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy is a bounded retry policy: at most MaxAttempts tries, waiting
// Interval between them, with the delay doubling each round when
// Exponential is set (capped at MaxInterval). Zero values mean one
// attempt and no wait.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	Exponential bool
	MaxInterval time.Duration
}

// ErrExhausted wraps the last error once every attempt has been spent.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Do runs fn until it succeeds, the context is cancelled, or the attempt
// budget runs out. The returned error always keeps the last failure in
// the chain so callers can classify it.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Interval

	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = fn(ctx); last == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if p.Exponential {
			delay *= 2
			if p.MaxInterval > 0 && delay > p.MaxInterval {
				delay = p.MaxInterval
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
}
