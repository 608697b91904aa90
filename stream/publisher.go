package stream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Publisher multicasts one upstream stream. The first subscriber connects
// it, every subscriber starts with the latest value seen, and when the last
// subscriber leaves the upstream is closed; a later subscriber connects a
// fresh one. An upstream error is final: current and future subscribers all
// receive it, unless it was declared with ResumeAfter.
//
// Every subscriber receives the same value unless WithCopy is set.
type Publisher[T any] struct {
	source    func() *Stream[T]
	copyFn    func(T) T
	resumable []error
	onFinal   func(err error)

	mutex       sync.Mutex
	upstream    *Stream[T]
	subscribers map[*Stream[T]]struct{}
	latest      T
	hasLatest   bool
	err         error
}

func NewPublisher[T any](source func() *Stream[T]) *Publisher[T] {
	return &Publisher[T]{
		source:      source,
		subscribers: map[*Stream[T]]struct{}{},
	}
}

// WithCopy makes every subscriber receive its own f(v). Configure it
// before the first Subscribe.
func (p *Publisher[T]) WithCopy(f func(T) T) *Publisher[T] {
	p.copyFn = f
	return p
}

// ResumeAfter declares upstream errors matching any of errs as not final:
// current subscribers finish with the error and the next subscriber
// connects a fresh upstream. Configure it before the first Subscribe.
func (p *Publisher[T]) ResumeAfter(errs ...error) *Publisher[T] {
	p.resumable = append(p.resumable, errs...)
	return p
}

// OnFinal sets f to be called once when the publisher fails for good.
// Configure it before the first Subscribe.
func (p *Publisher[T]) OnFinal(f func(err error)) *Publisher[T] {
	p.onFinal = f
	return p
}

func (p *Publisher[T]) copyOf(v T) T {
	if p.copyFn == nil {
		return v
	}
	return p.copyFn(v)
}

func (p *Publisher[T]) resumes(err error) bool {
	for _, target := range p.resumable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (p *Publisher[T]) Subscribe() *Stream[T] {
	p.mutex.Lock()

	if p.err != nil {
		err := p.err
		p.mutex.Unlock()
		return Failed[T](err)
	}

	sub := New[T](nil)
	p.subscribers[sub] = struct{}{}
	if p.hasLatest {
		sub.Yield(p.copyOf(p.latest))
	}

	var connect *Stream[T]
	if p.upstream == nil {
		p.upstream = p.source()
		connect = p.upstream
	}
	p.mutex.Unlock()

	sub.OnTermination(func() {
		p.unsubscribe(sub)
	})

	if connect != nil {
		go p.pump(connect)
	}

	return sub
}

// Subscribers returns how many subscriptions are open.
func (p *Publisher[T]) Subscribers() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.subscribers)
}

func (p *Publisher[T]) pump(upstream *Stream[T]) {
	for {
		v, err := upstream.Next(context.Background())
		if err != nil {
			p.finish(upstream, err)
			return
		}
		p.publish(upstream, v)
	}
}

func (p *Publisher[T]) publish(upstream *Stream[T], v T) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.upstream != upstream {
		return
	}
	p.latest = v
	p.hasLatest = true
	for sub := range p.subscribers {
		sub.Yield(p.copyOf(v))
	}
}

func (p *Publisher[T]) finish(upstream *Stream[T], err error) {
	p.mutex.Lock()
	if p.upstream != upstream {
		p.mutex.Unlock()
		return
	}
	final := false
	switch {
	case err == io.EOF:
		err = nil
	case p.resumes(err):
	default:
		p.err = err
		final = true
	}
	subscribers := p.subscribers
	p.subscribers = map[*Stream[T]]struct{}{}
	p.reset()
	p.mutex.Unlock()

	for sub := range subscribers {
		sub.Finish(err)
	}
	if final && p.onFinal != nil {
		p.onFinal(err)
	}
}

func (p *Publisher[T]) unsubscribe(sub *Stream[T]) {
	p.mutex.Lock()
	if _, exists := p.subscribers[sub]; !exists {
		p.mutex.Unlock()
		return
	}
	delete(p.subscribers, sub)
	if len(p.subscribers) > 0 || p.upstream == nil {
		p.mutex.Unlock()
		return
	}
	upstream := p.upstream
	p.reset()
	p.mutex.Unlock()

	upstream.Close()
}

func (p *Publisher[T]) reset() {
	var zero T
	p.upstream = nil
	p.latest = zero
	p.hasLatest = false
}
