package database

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"

	"github.com/fulldump/liverepo/collection"
)

type rowID struct {
	table string
	key   string
}

type pendingOp struct {
	op     Op
	object any
}

type staged struct {
	object  any
	deleted bool
}

// Tx is a write transaction. Reads inside the transaction see its own
// pending writes. Live objects obtained through Object may be mutated in
// place; they are encoded again when the transaction commits.
type Tx struct {
	db      *Database
	ops     []pendingOp
	staged  map[rowID]*staged
	cleared map[string]bool
	dirty   map[rowID]*collection.Row
	order   []rowID
	touched []rowID
}

func newTx(db *Database) *Tx {
	return &Tx{
		db:      db,
		staged:  map[rowID]*staged{},
		cleared: map[string]bool{},
		dirty:   map[rowID]*collection.Row{},
	}
}

func (tx *Tx) lookup(table, key string) (object any, row *collection.Row, exists bool) {
	id := rowID{table, key}
	if s, ok := tx.staged[id]; ok {
		if s.deleted {
			return nil, nil, false
		}
		return s.object, nil, true
	}
	if tx.cleared[table] {
		return nil, nil, false
	}
	row, exists = tx.db.table(table).Get(key)
	return nil, row, exists
}

func (tx *Tx) Has(table, key string) bool {
	_, _, exists := tx.lookup(table, key)
	return exists
}

// Add stores object under key. The object itself becomes the live object of
// the row, so callers must not keep using it afterwards. With overwrite
// false an existing key fails with ErrDuplicateKey.
func (tx *Tx) Add(table, key string, object any, overwrite bool) error {
	if key == "" {
		return fmt.Errorf("empty primary key")
	}
	if !overwrite && tx.Has(table, key) {
		return fmt.Errorf("%w: '%s' in '%s'", ErrDuplicateKey, key, table)
	}

	payload, err := collection.Marshal(object)
	if err != nil {
		return fmt.Errorf("encode '%s': %w", key, err)
	}

	id := rowID{table, key}
	tx.ops = append(tx.ops, pendingOp{
		op:     Op{Op: OpPut, Table: table, Key: key, Value: payload},
		object: object,
	})
	tx.staged[id] = &staged{object: object}
	delete(tx.dirty, id)

	return nil
}

// Delete removes key and reports whether it existed.
func (tx *Tx) Delete(table, key string) bool {
	if !tx.Has(table, key) {
		return false
	}

	id := rowID{table, key}
	tx.ops = append(tx.ops, pendingOp{
		op: Op{Op: OpDelete, Table: table, Key: key},
	})
	tx.staged[id] = &staged{deleted: true}
	delete(tx.dirty, id)

	return true
}

func (tx *Tx) DeleteAll(table string) {
	tx.ops = append(tx.ops, pendingOp{
		op: Op{Op: OpClear, Table: table},
	})
	tx.cleared[table] = true
	for id := range tx.staged {
		if id.table == table {
			delete(tx.staged, id)
		}
	}
	for id := range tx.dirty {
		if id.table == table {
			delete(tx.dirty, id)
		}
	}
}

// Object returns the live object under key, ready to be mutated.
func (tx *Tx) Object(table, key string) (any, bool, error) {
	object, row, exists := tx.lookup(table, key)
	if !exists {
		return nil, false, nil
	}
	if row == nil {
		return object, true, nil
	}

	object, err := tx.db.table(table).Live(row)
	if err != nil {
		return nil, false, err
	}

	id := rowID{table, key}
	if _, marked := tx.dirty[id]; !marked {
		tx.dirty[id] = row
		tx.order = append(tx.order, id)
		tx.touched = append(tx.touched, id)
	}

	return object, true, nil
}

// finalize turns live objects touched in place into put operations.
func (tx *Tx) finalize() error {
	for _, id := range tx.order {
		row, ok := tx.dirty[id]
		if !ok {
			continue
		}
		payload, err := collection.Marshal(row.Object)
		if err != nil {
			return fmt.Errorf("encode '%s': %w", id.key, err)
		}
		if bytes.Equal(payload, row.Payload) {
			continue
		}
		tx.ops = append(tx.ops, pendingOp{
			op:     Op{Op: OpPut, Table: id.table, Key: id.key, Value: payload},
			object: row.Object,
		})
	}
	return nil
}

// rollback discards in place mutations by dropping the live objects; the
// next read decodes them again from the committed payload.
func (tx *Tx) rollback() {
	for _, id := range tx.touched {
		table := tx.db.table(id.table)
		row, exists := table.Get(id.key)
		if exists {
			table.Reset(row)
		}
	}
	dbMetrics.rollbacks.Inc()
}

// Write runs fn inside a write transaction. When fn returns an error nothing
// is persisted and live objects touched by fn return to their committed
// state. Observers are scheduled once the commit is on disk.
func (db *Database) Write(fn func(tx *Tx) error) (err error) {
	db.writeMutex.Lock()
	defer db.writeMutex.Unlock()

	err = db.operating()
	if err != nil {
		return err
	}

	t0 := time.Now()
	tx := newTx(db)

	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	err = fn(tx)
	if err == nil {
		err = tx.finalize()
	}
	if err != nil {
		tx.rollback()
		return err
	}

	if len(tx.ops) == 0 {
		return nil
	}

	err = db.commit(tx)
	if err != nil {
		tx.rollback()
		return err
	}

	dbMetrics.commitDuration.Observe(time.Since(t0).Seconds())
	return nil
}

func (db *Database) commit(tx *Tx) error {
	ops := make([]Op, len(tx.ops))
	for i, p := range tx.ops {
		ops[i] = p.op
	}

	payload, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode ops: %w", err)
	}

	command := &Command{
		Name:      "commit",
		Uuid:      uuid.New().String(),
		Timestamp: time.Now().UnixNano(),
		Version:   db.version + 1,
		Payload:   jsontext.Value(payload),
	}

	line, err := db.encodeCommand(command)
	if err != nil {
		return err
	}

	_, err = db.file.Write(line)
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	db.version = command.Version

	changes := db.apply(tx.ops)

	dbMetrics.commits.Inc()
	for _, op := range ops {
		dbMetrics.ops.WithLabelValues(op.Op).Inc()
	}

	db.notify(changes)

	return nil
}
