// Package database is a small embedded object store with change
// notifications. Every table lives in memory and every committed write
// transaction is appended to a single command log file, one line per commit.
package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/fulldump/liverepo/actor"
	"github.com/fulldump/liverepo/collection"
	"github.com/fulldump/liverepo/utils"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

var (
	ErrClosed         = errors.New("database is closed")
	ErrLocked         = errors.New("database is in use by another process")
	ErrInvalidKey     = errors.New("invalid encryption key")
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrDuplicateKey   = errors.New("duplicate primary key")
)

// Scheduler runs notification callbacks. *actor.Actor satisfies it, so
// callbacks are delivered on the writer after the commit that caused them.
type Scheduler interface {
	Go(f func(ctx context.Context))
}

type Config struct {
	Path                    string
	EncryptionKey           []byte
	SchemaVersion           uint64
	DeleteIfMigrationNeeded bool
	Scheduler               Scheduler
}

type Database struct {
	config    *Config
	status    string
	sealer    *sealer
	lock      *fileLock
	file      *os.File
	version   uint64
	createdAt int64
	torn      int64

	tables        map[string]*collection.Collection
	subscriptions map[*Token]*subscription

	scheduler    Scheduler
	ownScheduler *actor.Actor

	writeMutex sync.Mutex
	mutex      *sync.RWMutex
}

func Open(config *Config) (*Database, error) {
	dbMetrics.init()

	if config.Path == "" {
		return nil, fmt.Errorf("empty database path")
	}

	db := &Database{
		config:        config,
		status:        StatusOpening,
		torn:          -1,
		tables:        map[string]*collection.Collection{},
		subscriptions: map[*Token]*subscription{},
		scheduler:     config.Scheduler,
		mutex:         &sync.RWMutex{},
	}
	if db.scheduler == nil {
		db.ownScheduler = actor.New("notify " + filepath.Base(config.Path))
		db.scheduler = db.ownScheduler
	}

	if len(config.EncryptionKey) > 0 {
		s, err := newSealer(config.EncryptionKey)
		if err != nil {
			return nil, err
		}
		db.sealer = s
	}

	err := os.MkdirAll(filepath.Dir(config.Path), 0755)
	if err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}

	db.lock, err = acquireLock(config.Path)
	if err != nil {
		return nil, err
	}

	err = db.load()
	if err != nil {
		db.status = StatusClosing
		db.lock.release()
		if db.ownScheduler != nil {
			db.ownScheduler.Stop()
		}
		return nil, err
	}

	db.status = StatusOperating
	dbMetrics.open.Inc()

	return db, nil
}

func (db *Database) load() error {
	t0 := time.Now()
	path := db.config.Path

	meta, err := readManagement(path)
	if err != nil {
		return err
	}

	if meta != nil && meta.SchemaVersion != db.config.SchemaVersion {
		if !db.config.DeleteIfMigrationNeeded {
			return fmt.Errorf("%w: file has %d, expected %d", ErrSchemaMismatch, meta.SchemaVersion, db.config.SchemaVersion)
		}
		slog.Warn("schema version changed, deleting database",
			"path", path, "from", meta.SchemaVersion, "to", db.config.SchemaVersion)
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete database: %w", err)
		}
		meta = nil
	}

	if meta != nil {
		err := db.checkKey(meta)
		if err != nil {
			return err
		}
		db.createdAt = meta.CreatedAt
	}

	err = os.Remove(path + ".note")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove note file", "path", path, "error", err)
	}

	err = db.readLog()
	if err != nil {
		return err
	}

	if db.torn >= 0 {
		err := os.Truncate(path, db.torn)
		if err != nil {
			return fmt.Errorf("truncate torn line: %w", err)
		}
	}

	db.file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open file for append: %w", err)
	}
	if db.torn >= 0 {
		db.file.Write([]byte("\n"))
	}

	if db.createdAt == 0 {
		db.createdAt = time.Now().Unix()
	}
	m := &management{
		SchemaVersion: db.config.SchemaVersion,
		CreatedAt:     db.createdAt,
	}
	if db.sealer != nil {
		m.KeyCheck = db.sealer.check
	}
	err = writeManagement(path, m)
	if err != nil {
		db.file.Close()
		return err
	}

	dbMetrics.loadDuration.Observe(time.Since(t0).Seconds())
	slog.Debug("database loaded", "path", path, "version", db.version, "tables", db.Tables(), "elapsed", time.Since(t0))

	return nil
}

func (db *Database) checkKey(meta *management) error {
	switch {
	case meta.KeyCheck != "" && db.sealer == nil:
		return fmt.Errorf("%w: database is encrypted", ErrInvalidKey)
	case meta.KeyCheck == "" && db.sealer != nil:
		info, err := os.Stat(db.config.Path)
		if err == nil && info.Size() > 0 {
			return fmt.Errorf("%w: database is not encrypted", ErrInvalidKey)
		}
	case db.sealer != nil && !db.sealer.matches(meta.KeyCheck):
		return ErrInvalidKey
	}
	return nil
}

func (db *Database) readLog() error {
	f, err := os.Open(db.config.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer f.Close()

	decoder := jsontext.NewDecoder(f)
	for {
		offset := decoder.InputOffset()
		value, err := decoder.ReadValue()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Warn("incomplete trailing line, discarded", "path", db.config.Path, "offset", offset)
			dbMetrics.tornLines.Inc()
			db.torn = offset
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode log: %w", err)
		}

		command, err := db.decodeCommand(value)
		if err != nil {
			return err
		}

		err = db.replay(command)
		if err != nil {
			return err
		}
	}
}

func (db *Database) decodeCommand(value jsontext.Value) (*Command, error) {
	payload := []byte(value)

	if db.sealer != nil {
		encoded := ""
		err := json.Unmarshal(value, &encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: plain line in encrypted database", ErrInvalidKey)
		}
		payload, err = db.sealer.open(encoded)
		if err != nil {
			return nil, err
		}
	} else if value.Kind() == '"' {
		return nil, fmt.Errorf("%w: database is encrypted", ErrInvalidKey)
	}

	command := &Command{}
	err := json.Unmarshal(payload, command)
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	return command, nil
}

func (db *Database) encodeCommand(command *Command) ([]byte, error) {
	data, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	if db.sealer != nil {
		encoded, err := db.sealer.seal(data)
		if err != nil {
			return nil, err
		}
		data, err = json.Marshal(encoded)
		if err != nil {
			return nil, fmt.Errorf("encode sealed command: %w", err)
		}
	}

	return append(data, '\n'), nil
}

func (db *Database) replay(command *Command) error {
	switch command.Name {
	case "commit":
		ops := []Op{}
		err := json.Unmarshal(command.Payload, &ops)
		if err != nil {
			return fmt.Errorf("decode commit %s: %w", command.Uuid, err)
		}
		pending := make([]pendingOp, len(ops))
		for i, op := range ops {
			pending[i] = pendingOp{op: op}
		}
		db.apply(pending)
		db.version = command.Version
	default:
		slog.Warn("unknown command, ignored", "name", command.Name, "uuid", command.Uuid)
	}
	return nil
}

// apply mutates the in-memory tables and reports what changed.
func (db *Database) apply(ops []pendingOp) *changeSet {
	changes := newChangeSet()

	for _, p := range ops {
		op := p.op
		table := db.table(op.Table)
		changes.tables[op.Table] = true

		switch op.Op {
		case OpPut:
			table.Put(&collection.Row{
				Key:     op.Key,
				Payload: op.Value,
				Object:  p.object,
			})
			changes.objects[rowID{op.Table, op.Key}] = true
		case OpDelete:
			table.Delete(op.Key)
			changes.objects[rowID{op.Table, op.Key}] = false
		case OpClear:
			for _, row := range table.Clear() {
				changes.objects[rowID{op.Table, row.Key}] = false
			}
		}
	}

	return changes
}

// table returns the named table, creating it when it does not exist yet.
func (db *Database) table(name string) *collection.Collection {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	table, exists := db.tables[name]
	if !exists {
		table = collection.NewCollection(name)
		db.tables[name] = table
	}
	return table
}

// Register binds a table to the constructor of its record type so live
// objects can be decoded from committed payloads.
func (db *Database) Register(table string, newFn func() any) {
	db.table(table).Register(newFn)
}

func (db *Database) Tables() []string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return utils.GetKeys(db.tables)
}

func (db *Database) GetStatus() string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.status
}

func (db *Database) Path() string {
	return db.config.Path
}

func (db *Database) Version() uint64 {
	db.writeMutex.Lock()
	defer db.writeMutex.Unlock()
	return db.version
}

func (db *Database) operating() error {
	if db.GetStatus() != StatusOperating {
		return ErrClosed
	}
	return nil
}

// Object returns the live object stored under key.
func (db *Database) Object(table, key string) (any, bool, error) {
	err := db.operating()
	if err != nil {
		return nil, false, err
	}

	t := db.table(table)
	row, exists := t.Get(key)
	if !exists {
		return nil, false, nil
	}

	object, err := t.Live(row)
	if err != nil {
		return nil, false, err
	}
	return object, true, nil
}

// Objects returns a live query over every row of the table.
func (db *Database) Objects(table string) *Results {
	return &Results{db: db, table: table}
}

func (db *Database) ObjectRef(table, key string) *ObjectHandle {
	return &ObjectHandle{db: db, table: table, key: key}
}

// Close flushes the log and releases the lock. Pending notifications are
// dropped and every running observation receives one final Closed change.
// Calling Close twice is a no-op.
func (db *Database) Close() error {
	subscriptions, closed, err := db.close()
	if !closed {
		return nil
	}

	db.closed(subscriptions)

	if db.ownScheduler != nil {
		db.ownScheduler.Stop()
	}

	return err
}

func (db *Database) close() (map[*Token]*subscription, bool, error) {
	db.writeMutex.Lock()
	defer db.writeMutex.Unlock()

	db.mutex.Lock()
	if db.status == StatusClosing {
		db.mutex.Unlock()
		return nil, false, nil
	}
	db.status = StatusClosing
	subscriptions := db.subscriptions
	db.subscriptions = map[*Token]*subscription{}
	db.mutex.Unlock()

	var lastErr error
	if db.file != nil {
		err := db.file.Sync()
		if err != nil {
			slog.Error("sync database", "path", db.config.Path, "error", err)
			lastErr = err
		}
		err = db.file.Close()
		if err != nil {
			lastErr = err
		}
	}

	err := db.lock.release()
	if err != nil {
		lastErr = err
	}

	dbMetrics.open.Dec()

	return subscriptions, true, lastErr
}

// Invalidate releases the handle ahead of deleting the files. It is Close
// under the name callers reach for when discarding a database.
func (db *Database) Invalidate() {
	err := db.Close()
	if err != nil {
		slog.Warn("invalidate database", "path", db.config.Path, "error", err)
	}
}
