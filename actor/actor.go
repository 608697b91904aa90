// Package actor provides the single-writer execution context: one worker
// goroutine that runs submitted jobs one at a time, in admission order.
//
// Every storage read, write and observer subscription is funneled through an
// Actor. Callers suspend in Do until their job has run; notification
// callbacks are enqueued with Go and never block the submitter.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var ErrStopped = errors.New("actor stopped")

// Shared is the process-wide writer used by storage contexts that are not
// given their own Actor.
var Shared = New("writer")

const (
	jobPending int32 = iota
	jobRunning
	jobCancelled
)

type job struct {
	ctx   context.Context
	f     func(ctx context.Context) error
	state atomic.Int32
	done  chan error // nil for fire-and-forget jobs
}

type Actor struct {
	name      string
	mutex     sync.Mutex
	queue     []*job
	stopped   bool
	wakeup    chan struct{}
	closed    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type currentKey struct{}

func New(name string) *Actor {
	return &Actor{
		name:   name,
		wakeup: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (a *Actor) Name() string {
	return a.name
}

// IsCurrent reports whether ctx belongs to a job running on this actor.
func (a *Actor) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	current, _ := ctx.Value(currentKey{}).(*Actor)
	return current == a
}

// Do runs f on the actor and waits for it to finish. A call made from
// inside a job of the same actor runs inline.
func (a *Actor) Do(ctx context.Context, f func(ctx context.Context) error) error {
	if a.IsCurrent(ctx) {
		return f(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	j := &job{
		ctx:  ctx,
		f:    f,
		done: make(chan error, 1),
	}
	if err := a.enqueue(j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobCancelled) {
			return ctx.Err()
		}
		// Already running: a job is never abandoned halfway.
		return <-j.done
	}
}

// Go enqueues f without waiting. It never blocks, so it is safe to call
// from inside a running job.
func (a *Actor) Go(f func(ctx context.Context)) {
	j := &job{
		ctx: context.Background(),
		f: func(ctx context.Context) error {
			f(ctx)
			return nil
		},
	}
	if err := a.enqueue(j); err != nil {
		slog.Debug("actor: job discarded", "actor", a.name, "error", err)
	}
}

func (a *Actor) enqueue(j *job) error {
	a.mutex.Lock()
	if a.stopped {
		a.mutex.Unlock()
		return ErrStopped
	}
	a.queue = append(a.queue, j)
	a.mutex.Unlock()

	a.startOnce.Do(func() {
		a.wg.Add(1)
		go a.loop()
	})

	select {
	case a.wakeup <- struct{}{}:
	default:
	}

	return nil
}

func (a *Actor) take() []*job {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	jobs := a.queue
	a.queue = nil
	return jobs
}

func (a *Actor) loop() {
	defer a.wg.Done()

	slog.Debug("actor started", "actor", a.name)
	defer slog.Debug("actor stopped", "actor", a.name)

	for {
		jobs := a.take()
		for _, j := range jobs {
			a.run(j)
		}
		if len(jobs) > 0 {
			continue
		}

		select {
		case <-a.wakeup:
		case <-a.closed:
			// Drain queue
			for {
				jobs := a.take()
				if len(jobs) == 0 {
					return
				}
				for _, j := range jobs {
					a.run(j)
				}
			}
		}
	}
}

func (a *Actor) run(j *job) {
	if !j.state.CompareAndSwap(jobPending, jobRunning) {
		return // cancelled before admission
	}

	ctx := context.WithValue(j.ctx, currentKey{}, a)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("actor: job panicked", "actor", a.name, "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("actor %s: job panicked: %v", a.name, r)
			}
		}()
		err = j.f(ctx)
	}()

	if j.done != nil {
		j.done <- err
	}
}

// Stop runs every job already queued and then stops the worker. Later calls
// to Do fail with ErrStopped.
func (a *Actor) Stop() {
	a.mutex.Lock()
	a.stopped = true
	a.mutex.Unlock()

	a.closeOnce.Do(func() {
		close(a.closed)
	})
	a.wg.Wait()
}
