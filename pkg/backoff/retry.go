package backoff

import (
	"context"
	"time"
)

// Op is an operation that [Run] retries. It reports each value it produces
// by calling emit (which also resets the delay), and returns when it fails.
// Returning nil means the operation is done, and stops the retries.
type Op[T any] func(ctx context.Context, emit func(T)) error

// Timer returns a channel that fires after the given delay.
type Timer func(time.Duration) <-chan time.Time

type retrier struct {
	timer   Timer
	onRetry func(attempt int, delay time.Duration, err error)
}

type Option func(*retrier)

// WithTimer replaces [time.After], mostly for the sake of unit tests.
func WithTimer(t Timer) Option {
	return func(r *retrier) {
		r.timer = t
	}
}

// WithOnRetry registers a callback that is called after every failure,
// before waiting. The attempt number is 1-based and counts consecutive
// failures since the last reset.
func WithOnRetry(f func(attempt int, delay time.Duration, err error)) Option {
	return func(r *retrier) {
		r.onRetry = f
	}
}

// Run calls op, and calls it again after every failure, until it returns nil
// or ctx is done. Values emitted by op are passed to yield (if not nil).
//
// Run is a loop, not a recursion, so it can retry indefinitely. If ctx is
// canceled, Run returns the context's error rather than the last failure.
func Run[T any](ctx context.Context, cfg Config, op Op[T], yield func(T), opts ...Option) error {
	r := &retrier{timer: time.After}
	for _, opt := range opts {
		opt(r)
	}

	s := NewState(cfg)
	failures := 0
	emit := func(v T) {
		s.Reset()
		failures = 0
		if yield != nil {
			yield(v)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx, emit)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		failures++
		d := s.Next()
		if r.onRetry != nil {
			r.onRetry(failures, d, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.timer(d):
		}
	}
}

// Stream is a channel-based variant of [Run]: it returns a channel of
// the values that op emits, which is closed when the retries stop, and
// a channel that publishes the final result of [Run] exactly once.
func Stream[T any](ctx context.Context, cfg Config, op Op[T], opts ...Option) (<-chan T, <-chan error) {
	values := make(chan T)
	result := make(chan error, 1)

	go func() {
		defer close(values)
		result <- Run(ctx, cfg, op, func(v T) {
			select {
			case values <- v:
			case <-ctx.Done():
			}
		}, opts...)
		close(result)
	}()

	return values, result
}
