package database

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fulldump/liverepo/collection"
)

type ChangeKind int

const (
	Initial ChangeKind = iota
	Update
	Deleted
	// Closed is the last change of every observation still running when the
	// database is closed.
	Closed
)

func (k ChangeKind) String() string {
	switch k {
	case Initial:
		return "initial"
	case Update:
		return "update"
	case Deleted:
		return "deleted"
	case Closed:
		return "closed"
	}
	return "unknown"
}

type ResultsChange struct {
	Kind    ChangeKind
	Results *Results
}

// ObjectChange carries the live object on Update and nothing on Deleted or
// Closed.
type ObjectChange struct {
	Kind   ChangeKind
	Object any
}

type changeSet struct {
	tables  map[string]bool
	objects map[rowID]bool // true when the row exists after the commit
}

func newChangeSet() *changeSet {
	return &changeSet{
		tables:  map[string]bool{},
		objects: map[rowID]bool{},
	}
}

type subscription struct {
	table     string
	key       string
	onResults func(ResultsChange)
	onObject  func(ObjectChange)
	results   *Results
}

// Token keeps an observation alive. Invalidate stops further callbacks,
// including ones already scheduled but not yet run.
type Token struct {
	db          *Database
	once        sync.Once
	invalidated atomic.Bool
}

func (t *Token) Invalidate() {
	t.once.Do(func() {
		t.invalidated.Store(true)
		t.db.mutex.Lock()
		delete(t.db.subscriptions, t)
		t.db.mutex.Unlock()
	})
}

func (t *Token) Invalidated() bool {
	return t.invalidated.Load()
}

func (db *Database) subscribe(s *subscription) (*Token, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.status != StatusOperating {
		return nil, ErrClosed
	}

	token := &Token{db: db}
	db.subscriptions[token] = s
	return token, nil
}

func (db *Database) schedule(token *Token, kind string, f func()) {
	dbMetrics.notifications.WithLabelValues(kind).Inc()
	db.scheduler.Go(func(ctx context.Context) {
		if token.invalidated.Load() {
			return
		}
		f()
	})
}

// notify schedules the callbacks interested in changes. Callbacks never run
// inside Write.
func (db *Database) notify(changes *changeSet) {
	db.mutex.RLock()
	type delivery struct {
		token *Token
		s     *subscription
	}
	deliveries := []delivery{}
	for token, s := range db.subscriptions {
		if s.key == "" && changes.tables[s.table] {
			deliveries = append(deliveries, delivery{token, s})
			continue
		}
		if _, changed := changes.objects[rowID{s.table, s.key}]; s.key != "" && changed {
			deliveries = append(deliveries, delivery{token, s})
		}
	}
	db.mutex.RUnlock()

	for _, d := range deliveries {
		token, s := d.token, d.s
		if s.onResults != nil {
			db.schedule(token, "results", func() {
				s.onResults(ResultsChange{Kind: Update, Results: s.results})
			})
			continue
		}

		exists := changes.objects[rowID{s.table, s.key}]
		if !exists {
			db.schedule(token, "deleted", func() {
				token.Invalidate()
				s.onObject(ObjectChange{Kind: Deleted})
			})
			continue
		}
		db.schedule(token, "object", func() {
			object, exists, err := db.Object(s.table, s.key)
			if err != nil || !exists {
				return
			}
			s.onObject(ObjectChange{Kind: Update, Object: object})
		})
	}
}

// closed schedules a Closed change for every subscription that was still
// registered when the database closed. Their tokens are already invalid, so
// callbacks queued before Close are skipped and this is the last delivery.
func (db *Database) closed(subscriptions map[*Token]*subscription) {
	for token, s := range subscriptions {
		token.invalidated.Store(true)
		dbMetrics.notifications.WithLabelValues("closed").Inc()
		db.scheduler.Go(func(ctx context.Context) {
			if s.onResults != nil {
				s.onResults(ResultsChange{Kind: Closed})
				return
			}
			s.onObject(ObjectChange{Kind: Closed})
		})
	}
}

// Results is a live query: every read reflects the latest commit.
type Results struct {
	db     *Database
	table  string
	filter map[string]interface{}
}

func (r *Results) Table() string {
	return r.table
}

// Where narrows the results with a mongo-style filter.
func (r *Results) Where(filter map[string]interface{}) *Results {
	return &Results{db: r.db, table: r.table, filter: filter}
}

// Snapshot returns the live objects currently matching, in key order.
func (r *Results) Snapshot() ([]any, error) {
	err := r.db.operating()
	if err != nil {
		return nil, err
	}

	table := r.db.table(r.table)
	objects := []any{}
	var lastErr error
	table.Traverse(func(row *collection.Row) bool {
		match, err := collection.Match(row, r.filter)
		if err != nil {
			lastErr = err
			return false
		}
		if !match {
			return true
		}
		object, err := table.Live(row)
		if err != nil {
			lastErr = err
			return false
		}
		objects = append(objects, object)
		return true
	})
	if lastErr != nil {
		return nil, lastErr
	}

	return objects, nil
}

func (r *Results) Len() int {
	if len(r.filter) == 0 {
		return r.db.table(r.table).Len()
	}
	n := 0
	r.db.table(r.table).Traverse(func(row *collection.Row) bool {
		match, _ := collection.Match(row, r.filter)
		if match {
			n++
		}
		return true
	})
	return n
}

// Observe calls f with Initial as soon as the scheduler runs, then with
// Update after every commit touching the table.
func (r *Results) Observe(f func(ResultsChange)) (*Token, error) {
	token, err := r.db.subscribe(&subscription{
		table:     r.table,
		onResults: f,
		results:   r,
	})
	if err != nil {
		return nil, err
	}

	r.db.schedule(token, "initial", func() {
		f(ResultsChange{Kind: Initial, Results: r})
	})

	return token, nil
}

// ObjectHandle points at one row, whether or not it exists right now.
type ObjectHandle struct {
	db    *Database
	table string
	key   string
}

func (o *ObjectHandle) Get() (any, bool, error) {
	return o.db.Object(o.table, o.key)
}

// Observe calls f with Update after every commit that modifies the row and
// once with Deleted when it is removed. Observation ends after Deleted.
func (o *ObjectHandle) Observe(f func(ObjectChange)) (*Token, error) {
	return o.db.subscribe(&subscription{
		table:    o.table,
		key:      o.key,
		onObject: f,
	})
}
