package repository

import (
	"context"

	"github.com/fulldump/liverepo/stream"
)

// The Async variants return a Future that performs the write once, on its
// first Start or Wait, and shares the outcome with every waiter. Models are
// detached when the Future is created, so later changes by the caller are
// not picked up.

func (r *Repository[M]) future(f func(ctx context.Context) error) *stream.Future[struct{}] {
	return stream.NewFuture(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
}

func detachSlice[M Model[M]](ms []M) []M {
	detached := make([]M, len(ms))
	for i, m := range ms {
		if isNil(m) {
			continue
		}
		detached[i] = m.Detached()
	}
	return detached
}

func detachOne[M Model[M]](m M) M {
	if isNil(m) {
		return m
	}
	return m.Detached()
}

func (r *Repository[M]) InsertAsync(m M) *stream.Future[struct{}] {
	m = detachOne(m)
	return r.future(func(ctx context.Context) error { return r.Insert(ctx, m) })
}

func (r *Repository[M]) InsertAllAsync(ms []M) *stream.Future[struct{}] {
	ms = detachSlice(ms)
	return r.future(func(ctx context.Context) error { return r.InsertAll(ctx, ms) })
}

func (r *Repository[M]) UpsertAsync(m M) *stream.Future[struct{}] {
	m = detachOne(m)
	return r.future(func(ctx context.Context) error { return r.Upsert(ctx, m) })
}

func (r *Repository[M]) UpsertAllAsync(ms []M) *stream.Future[struct{}] {
	ms = detachSlice(ms)
	return r.future(func(ctx context.Context) error { return r.UpsertAll(ctx, ms) })
}

func (r *Repository[M]) UpdateAsync(m M, mutator func(m M) error) *stream.Future[struct{}] {
	m = detachOne(m)
	return r.future(func(ctx context.Context) error { return r.Update(ctx, m, mutator) })
}

func (r *Repository[M]) UpdateByKeyAsync(key any, mutator func(m M) error) *stream.Future[struct{}] {
	return r.future(func(ctx context.Context) error { return r.UpdateByKey(ctx, key, mutator) })
}

func (r *Repository[M]) RemoveAsync(m M) *stream.Future[struct{}] {
	m = detachOne(m)
	return r.future(func(ctx context.Context) error { return r.Remove(ctx, m) })
}

func (r *Repository[M]) RemoveByKeyAsync(key any) *stream.Future[struct{}] {
	return r.future(func(ctx context.Context) error { return r.RemoveByKey(ctx, key) })
}

func (r *Repository[M]) RemoveAllAsync(ms []M) *stream.Future[struct{}] {
	ms = detachSlice(ms)
	return r.future(func(ctx context.Context) error { return r.RemoveAll(ctx, ms) })
}

func (r *Repository[M]) ClearAsync() *stream.Future[struct{}] {
	return r.future(func(ctx context.Context) error { return r.Clear(ctx) })
}

func (r *Repository[M]) ReplaceAllAsync(ms []M) *stream.Future[struct{}] {
	ms = detachSlice(ms)
	return r.future(func(ctx context.Context) error { return r.ReplaceAll(ctx, ms) })
}
