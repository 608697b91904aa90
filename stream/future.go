package stream

import (
	"context"
	"sync"
)

// Future runs its operation once, lazily, and shares the outcome with every
// waiter.
type Future[T any] struct {
	run   func(ctx context.Context) (T, error)
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewFuture[T any](run func(ctx context.Context) (T, error)) *Future[T] {
	return &Future[T]{
		run:  run,
		done: make(chan struct{}),
	}
}

// Start launches the operation in the background if it has not started yet.
func (f *Future[T]) Start() {
	f.once.Do(func() {
		go func() {
			defer close(f.done)
			f.value, f.err = f.run(context.Background())
		}()
	})
}

// Wait starts the operation and blocks until it finishes or ctx is done.
// Giving up on ctx does not cancel the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	f.Start()
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
