package repository

import (
	"context"

	"github.com/fulldump/liverepo/database"
	"github.com/fulldump/liverepo/detach"
	"github.com/fulldump/liverepo/observer"
	"github.com/fulldump/liverepo/storage"
	"github.com/fulldump/liverepo/stream"
)

// Stream emits the detached contents of the table and again after every
// commit touching it. The observation is registered on the writer as soon
// as the stream is created; values wait in the stream until read. Closing
// the stream, or ctx being done, stops the observation. When the database
// is closed (Delete, Disconnect or a new Connect) the stream fails with
// database.ErrClosed.
func (r *Repository[M]) Stream(ctx context.Context) *stream.Stream[[]M] {
	return stream.New(func(s *stream.Stream[[]M]) error {
		o := observer.NewCollection(func(results *database.Results) {
			objects, err := results.Snapshot()
			if err != nil {
				s.Finish(err)
				return
			}
			s.Yield(detachAll[M](objects))
		})
		o.OnClose(s.Finish)

		closed := streamOpened(r.table, "collection")
		stop := context.AfterFunc(ctx, s.Close)
		s.OnTermination(func() {
			stop()
			o.Stop()
			closed()
		})

		r.store.Writer().Go(func(ctx context.Context) {
			db, err := r.realm()
			if err != nil {
				s.Finish(err)
				return
			}
			err = o.Start(db.Objects(r.table))
			if err != nil {
				s.Finish(err)
			}
		})
		return nil
	})
}

// GetStream emits the detached record stored under key and again after every
// change to it. The lookup runs on the writer when the stream is created. It
// fails with ErrObjectNotFound when the record is deleted, with the lookup
// error when the key is absent at that point and with database.ErrClosed
// when the database is closed.
func (r *Repository[M]) GetStream(ctx context.Context, key any) *stream.Stream[M] {
	k, err := Key(key)
	if err != nil {
		return stream.Failed[M](err)
	}

	return stream.New(func(s *stream.Stream[M]) error {
		o := observer.NewObject(func(object any, ok bool) {
			if !ok {
				s.Finish(ErrObjectNotFound)
				return
			}
			s.Yield(object.(M).Detached())
		})
		o.OnClose(s.Finish)

		closed := streamOpened(r.table, "object")
		stop := context.AfterFunc(ctx, s.Close)
		s.OnTermination(func() {
			stop()
			o.Stop()
			closed()
		})

		r.store.Writer().Go(func(ctx context.Context) {
			db, err := r.realm()
			if err != nil {
				s.Finish(err)
				return
			}
			object, exists, err := db.Object(r.table, k)
			if err != nil {
				s.Finish(err)
				return
			}
			if !exists {
				s.Finish(missing(k))
				return
			}
			s.Yield(object.(M).Detached())
			err = o.Start(db.ObjectRef(r.table, k))
			if err != nil {
				s.Finish(err)
			}
		})
		return nil
	})
}

// Publisher shares a single Stream of the table among all its subscribers,
// each of them receiving its own detached copy. The same Publisher is
// returned on every call. Closing the database finishes the current
// subscribers with database.ErrClosed; later subscribers observe whatever
// database is connected then.
func (r *Repository[M]) Publisher() *stream.Publisher[[]M] {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.publisher == nil {
		r.publisher = stream.NewPublisher(func() *stream.Stream[[]M] {
			return r.Stream(context.Background())
		}).
			WithCopy(detach.Slice[M]).
			ResumeAfter(database.ErrClosed, storage.ErrDatabaseNotFound)
	}
	return r.publisher
}

// GetPublisher shares a single GetStream per key. Once it fails for good,
// for instance because the record was deleted, the next call returns a new
// Publisher for the key.
func (r *Repository[M]) GetPublisher(key any) *stream.Publisher[M] {
	k, err := Key(key)
	if err != nil {
		return stream.NewPublisher(func() *stream.Stream[M] {
			return stream.Failed[M](err)
		})
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, exists := r.keyPublishers[k]
	if !exists {
		p = stream.NewPublisher(func() *stream.Stream[M] {
			return r.GetStream(context.Background(), k)
		}).
			WithCopy(detach.Value[M]).
			ResumeAfter(database.ErrClosed, storage.ErrDatabaseNotFound)
		p.OnFinal(func(err error) {
			r.forget(k, p)
		})
		r.keyPublishers[k] = p
	}
	return p
}

func (r *Repository[M]) forget(key string, p *stream.Publisher[M]) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.keyPublishers[key] == p {
		delete(r.keyPublishers, key)
	}
}
