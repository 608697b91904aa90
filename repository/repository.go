// Package repository is a typed CRUD facade over the database connected in
// a storage.Context. Every operation runs as one job on the storage writer,
// values going in are detached before they are stored and values coming out
// are detached before they are returned.
package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/fulldump/liverepo/database"
	"github.com/fulldump/liverepo/detach"
	"github.com/fulldump/liverepo/storage"
	"github.com/fulldump/liverepo/stream"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrObjectNotFound = errors.New("object not found")
	ErrKeyChanged     = errors.New("primary key cannot change")
)

// Model is a record type stored by a Repository. Implementations are
// pointer types; PrimaryKey reports false while the record has no key.
type Model[M any] interface {
	detach.Detachable[M]
	PrimaryKey() (string, bool)
}

type Repository[M Model[M]] struct {
	store storage.Context
	table string
	newFn func() any

	mutex         sync.Mutex
	publisher     *stream.Publisher[[]M]
	keyPublishers map[string]*stream.Publisher[M]
}

type options struct {
	table string
}

type Option func(o *options)

// WithTable overrides the table name, which defaults to the name of the
// model struct.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// New panics when M is not a pointer to a struct.
func New[M Model[M]](store storage.Context, opts ...Option) *Repository[M] {
	t := reflect.TypeFor[M]()
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("repository: model %s must be a pointer to a struct", t))
	}
	elem := t.Elem()

	o := &options{table: elem.Name()}
	for _, opt := range opts {
		opt(o)
	}

	return &Repository[M]{
		store: store,
		table: o.table,
		newFn: func() any {
			return reflect.New(elem).Interface()
		},
		keyPublishers: map[string]*stream.Publisher[M]{},
	}
}

func (r *Repository[M]) Table() string {
	return r.table
}

func (r *Repository[M]) realm() (*database.Database, error) {
	db, err := r.store.Realm()
	if err != nil {
		return nil, err
	}
	db.Register(r.table, r.newFn)
	return db, nil
}

// do runs f on the writer with the connected database.
func (r *Repository[M]) do(ctx context.Context, op string, f func(db *database.Database) error) error {
	t0 := time.Now()
	err := r.store.Writer().Do(ctx, func(ctx context.Context) error {
		db, err := r.realm()
		if err != nil {
			return err
		}
		return f(db)
	})
	observe(r.table, op, err, time.Since(t0))
	return err
}

// Key turns a primary key value into its stored form. Strings, integers and
// fmt.Stringer values (such as uuid.UUID) are accepted.
func Key(key any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case fmt.Stringer:
		return k.String(), nil
	}

	rv := reflect.ValueOf(key)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return "", fmt.Errorf("%w: unsupported key type %T", ErrKeyNotFound, key)
}

func modelKey[M Model[M]](m M) (string, error) {
	if isNil(m) {
		return "", fmt.Errorf("%w: nil model", ErrKeyNotFound)
	}
	key, ok := m.PrimaryKey()
	if !ok || key == "" {
		return "", ErrKeyNotFound
	}
	return key, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// missing is returned by keyed reads of absent records. It matches both
// ErrKeyNotFound and ErrObjectNotFound.
func missing(key string) error {
	return fmt.Errorf("%w: %w: '%s'", ErrKeyNotFound, ErrObjectNotFound, key)
}

func detachAll[M Model[M]](objects []any) []M {
	models := make([]M, len(objects))
	for i, object := range objects {
		models[i] = object.(M).Detached()
	}
	return models
}

func (r *Repository[M]) add(ctx context.Context, op string, models []M, overwrite bool) error {
	detached := make([]M, len(models))
	keys := make([]string, len(models))
	for i, m := range models {
		key, err := modelKey(m)
		if err != nil {
			return err
		}
		keys[i] = key
		detached[i] = m.Detached()
	}

	return r.do(ctx, op, func(db *database.Database) error {
		return db.Write(func(tx *database.Tx) error {
			for i, m := range detached {
				err := tx.Add(r.table, keys[i], m, overwrite)
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Insert stores a copy of m. It fails with database.ErrDuplicateKey when a
// record with the same key exists.
func (r *Repository[M]) Insert(ctx context.Context, m M) error {
	return r.add(ctx, "insert", []M{m}, false)
}

// InsertAll stores copies of ms in one transaction: all or none.
func (r *Repository[M]) InsertAll(ctx context.Context, ms []M) error {
	return r.add(ctx, "insert_all", ms, false)
}

// Upsert creates the record or fully replaces the one with the same key.
func (r *Repository[M]) Upsert(ctx context.Context, m M) error {
	return r.add(ctx, "upsert", []M{m}, true)
}

func (r *Repository[M]) UpsertAll(ctx context.Context, ms []M) error {
	return r.add(ctx, "upsert_all", ms, true)
}

// Get returns every record in key order.
func (r *Repository[M]) Get(ctx context.Context) ([]M, error) {
	return r.query(ctx, "get", nil, nil)
}

// GetBy returns the records accepted by pred. pred sees live records and
// must not keep them.
func (r *Repository[M]) GetBy(ctx context.Context, pred func(m M) bool) ([]M, error) {
	return r.query(ctx, "get_by", nil, pred)
}

// GetWhere returns the records matching a mongo-style filter over their
// JSON fields, e.g. {"age": {"$gte": 18}}.
func (r *Repository[M]) GetWhere(ctx context.Context, filter map[string]interface{}) ([]M, error) {
	return r.query(ctx, "get_where", filter, nil)
}

func (r *Repository[M]) query(ctx context.Context, op string, filter map[string]interface{}, pred func(m M) bool) ([]M, error) {
	var result []M
	err := r.do(ctx, op, func(db *database.Database) error {
		objects, err := db.Objects(r.table).Where(filter).Snapshot()
		if err != nil {
			return err
		}
		result = make([]M, 0, len(objects))
		for _, object := range objects {
			m := object.(M)
			if pred != nil && !pred(m) {
				continue
			}
			result = append(result, m.Detached())
		}
		return nil
	})
	return result, err
}

// Count returns how many records the table holds.
func (r *Repository[M]) Count(ctx context.Context) (int, error) {
	n := 0
	err := r.do(ctx, "count", func(db *database.Database) error {
		n = db.Objects(r.table).Len()
		return nil
	})
	return n, err
}

// GetByKey returns the record stored under key.
func (r *Repository[M]) GetByKey(ctx context.Context, key any) (M, error) {
	var result M
	k, err := Key(key)
	if err != nil {
		return result, err
	}

	err = r.do(ctx, "get_by_key", func(db *database.Database) error {
		object, exists, err := db.Object(r.table, k)
		if err != nil {
			return err
		}
		if !exists {
			return missing(k)
		}
		result = object.(M).Detached()
		return nil
	})
	return result, err
}

// Update applies mutator to the live record with the key of m, inside a
// write transaction. An error from mutator rolls the change back, and so
// does a mutator that changes the primary key (ErrKeyChanged).
func (r *Repository[M]) Update(ctx context.Context, m M, mutator func(m M) error) error {
	key, err := modelKey(m)
	if err != nil {
		return err
	}
	return r.update(ctx, "update", key, mutator)
}

func (r *Repository[M]) UpdateByKey(ctx context.Context, key any, mutator func(m M) error) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	return r.update(ctx, "update_by_key", k, mutator)
}

func (r *Repository[M]) update(ctx context.Context, op, key string, mutator func(m M) error) error {
	return r.do(ctx, op, func(db *database.Database) error {
		return db.Write(func(tx *database.Tx) error {
			object, exists, err := tx.Object(r.table, key)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: '%s'", ErrObjectNotFound, key)
			}
			m := object.(M)
			err = mutator(m)
			if err != nil {
				return err
			}
			if after, ok := m.PrimaryKey(); !ok || after != key {
				return fmt.Errorf("%w: '%s' became '%s'", ErrKeyChanged, key, after)
			}
			return nil
		})
	})
}

// Remove deletes the record with the key of m.
func (r *Repository[M]) Remove(ctx context.Context, m M) error {
	key, err := modelKey(m)
	if err != nil {
		return err
	}
	return r.do(ctx, "remove", func(db *database.Database) error {
		return r.remove(db, key)
	})
}

func (r *Repository[M]) RemoveByKey(ctx context.Context, key any) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	return r.do(ctx, "remove_by_key", func(db *database.Database) error {
		return r.remove(db, k)
	})
}

func (r *Repository[M]) remove(db *database.Database, key string) error {
	return db.Write(func(tx *database.Tx) error {
		if !tx.Delete(r.table, key) {
			return fmt.Errorf("%w: '%s'", ErrObjectNotFound, key)
		}
		return nil
	})
}

// RemoveAll deletes ms one transaction at a time, in order. It stops at the
// first failure; records removed before it stay removed.
func (r *Repository[M]) RemoveAll(ctx context.Context, ms []M) error {
	keys := make([]string, len(ms))
	for i, m := range ms {
		key, err := modelKey(m)
		if err != nil {
			return err
		}
		keys[i] = key
	}

	return r.do(ctx, "remove_all", func(db *database.Database) error {
		for _, key := range keys {
			err := r.remove(db, key)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear deletes every record of the table in one transaction.
func (r *Repository[M]) Clear(ctx context.Context) error {
	return r.do(ctx, "clear", func(db *database.Database) error {
		return db.Write(func(tx *database.Tx) error {
			tx.DeleteAll(r.table)
			return nil
		})
	})
}

// ReplaceAll swaps the whole table for copies of ms in one transaction, so
// readers see either the old set or the new one.
func (r *Repository[M]) ReplaceAll(ctx context.Context, ms []M) error {
	detached := make([]M, len(ms))
	keys := make([]string, len(ms))
	for i, m := range ms {
		key, err := modelKey(m)
		if err != nil {
			return err
		}
		keys[i] = key
		detached[i] = m.Detached()
	}

	return r.do(ctx, "replace_all", func(db *database.Database) error {
		return db.Write(func(tx *database.Tx) error {
			tx.DeleteAll(r.table)
			for i, m := range detached {
				err := tx.Add(r.table, keys[i], m, false)
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
}
