// Package stream bridges push style callbacks into pull style sequences.
//
// A Stream buffers every value its producer yields, in order, until the
// consumer reads it. A Publisher shares one upstream Stream among many
// subscribers and replays the latest value to newcomers.
package stream

import (
	"context"
	"io"
	"iter"
	"sync"
)

type Stream[T any] struct {
	mutex       sync.Mutex
	buffer      []T
	finished    bool
	err         error
	changed     chan struct{}
	onTerminate []func()
	terminated  bool
}

// New creates a stream and hands it to start, which wires the producer:
// start calls Yield and Finish (now or later) and registers its teardown
// with OnTermination. If start returns an error the stream finishes with it.
func New[T any](start func(s *Stream[T]) error) *Stream[T] {
	s := &Stream[T]{
		changed: make(chan struct{}),
	}
	if start != nil {
		err := start(s)
		if err != nil {
			s.Finish(err)
		}
	}
	return s
}

// Failed returns a stream that is already finished with err.
func Failed[T any](err error) *Stream[T] {
	s := New[T](nil)
	s.Finish(err)
	return s
}

func (s *Stream[T]) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Yield appends v to the buffer. It reports false once the stream is
// finished; the value is dropped then.
func (s *Stream[T]) Yield(v T) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.finished {
		return false
	}
	s.buffer = append(s.buffer, v)
	s.notify()
	return true
}

// Finish ends the stream after the values already buffered. A nil err is a
// clean end and readers get io.EOF.
func (s *Stream[T]) Finish(err error) {
	s.mutex.Lock()
	if s.finished {
		s.mutex.Unlock()
		return
	}
	s.finished = true
	s.err = err
	s.notify()
	s.mutex.Unlock()

	s.terminate()
}

// Close is the consumer giving up: buffered values are dropped, the producer
// teardown runs and later reads get io.EOF. Safe to call more than once.
func (s *Stream[T]) Close() {
	s.mutex.Lock()
	s.buffer = nil
	if !s.finished {
		s.finished = true
		s.notify()
	}
	s.mutex.Unlock()

	s.terminate()
}

// OnTermination registers f to run exactly once when the stream finishes or
// is closed. When that already happened f runs right away.
func (s *Stream[T]) OnTermination(f func()) {
	s.mutex.Lock()
	if !s.terminated {
		s.onTerminate = append(s.onTerminate, f)
		s.mutex.Unlock()
		return
	}
	s.mutex.Unlock()
	f()
}

func (s *Stream[T]) terminate() {
	s.mutex.Lock()
	if s.terminated {
		s.mutex.Unlock()
		return
	}
	s.terminated = true
	handlers := s.onTerminate
	s.onTerminate = nil
	s.mutex.Unlock()

	for _, f := range handlers {
		f()
	}
}

// Next blocks until a value is available. It returns io.EOF after a clean
// end, the producer error after a failure and ctx.Err() when ctx is done.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mutex.Lock()
		if len(s.buffer) > 0 {
			v := s.buffer[0]
			s.buffer[0] = zero
			s.buffer = s.buffer[1:]
			s.mutex.Unlock()
			return v, nil
		}
		if s.finished {
			err := s.err
			s.mutex.Unlock()
			if err == nil {
				err = io.EOF
			}
			return zero, err
		}
		changed := s.changed
		s.mutex.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// All ranges over the stream. A failure is yielded once as the final pair;
// breaking out of the loop closes the stream.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				s.Close()
				return
			}
		}
	}
}

// Map returns a stream with f applied to every value of source. Closing the
// result closes source.
func Map[T, U any](source *Stream[T], f func(T) U) *Stream[U] {
	return New(func(s *Stream[U]) error {
		ctx, cancel := context.WithCancel(context.Background())
		s.OnTermination(func() {
			cancel()
			source.Close()
		})

		go func() {
			for {
				v, err := source.Next(ctx)
				if err == io.EOF {
					s.Finish(nil)
					return
				}
				if err != nil {
					s.Finish(err)
					return
				}
				s.Yield(f(v))
			}
		}()
		return nil
	})
}
