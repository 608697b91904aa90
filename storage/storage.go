// Package storage owns the connection to the database file. A Context is
// the single place a repository asks for the current database handle.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/fulldump/liverepo/actor"
	"github.com/fulldump/liverepo/database"
	"github.com/fulldump/liverepo/keygen"
	"github.com/fulldump/liverepo/settings"
)

var ErrDatabaseNotFound = errors.New("database not found")

const (
	DefaultName   = "Public"
	SchemaVersion = 1

	fileExtension = ".realm"
	postfixKey    = "_db_postfix"
	backupXattr   = "user.xdg.robots.backup"
)

var metaFileExtensions = []string{"lock", "note", "management"}

// Context hands out the connected database. Connect and Delete run on the
// writer returned by Writer.
type Context interface {
	Realm() (*database.Database, error)
	Connect(ctx context.Context, name string, password, salt *string) error
	Delete(ctx context.Context, name string) error
	Writer() *actor.Actor
}

type Options struct {
	Dir           string
	Settings      *settings.Store // defaults to <Dir>/settings.json
	Writer        *actor.Actor    // defaults to actor.Shared
	SchemaVersion uint64          // defaults to SchemaVersion
}

type Storage struct {
	dir           string
	settings      *settings.Store
	writer        *actor.Actor
	schemaVersion uint64

	mutex *sync.RWMutex
	db    *database.Database
	name  string
}

func New(options Options) (*Storage, error) {
	if options.Dir == "" {
		options.Dir = DefaultDir()
	}

	if options.Settings == nil {
		s, err := settings.Open(filepath.Join(options.Dir, "settings.json"))
		if err != nil {
			return nil, err
		}
		options.Settings = s
	}

	if options.Writer == nil {
		options.Writer = actor.Shared
	}

	if options.SchemaVersion == 0 {
		options.SchemaVersion = SchemaVersion
	}

	return &Storage{
		dir:           options.Dir,
		settings:      options.Settings,
		writer:        options.Writer,
		schemaVersion: options.SchemaVersion,
		mutex:         &sync.RWMutex{},
	}, nil
}

// DefaultDir is the per-user data directory used by Default.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "liverepo")
}

func (s *Storage) Writer() *actor.Actor {
	return s.writer
}

func (s *Storage) Dir() string {
	return s.dir
}

// Realm returns the connected database or ErrDatabaseNotFound.
func (s *Storage) Realm() (*database.Database, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.db == nil {
		return nil, ErrDatabaseNotFound
	}
	return s.db, nil
}

// Connect opens the database called name, encrypted with a key derived from
// password when one is given. An already connected database is closed
// first.
func (s *Storage) Connect(ctx context.Context, name string, password, salt *string) error {
	return s.writer.Do(ctx, func(ctx context.Context) error {
		var key []byte
		if password != nil {
			k, err := keygen.DeriveKey(*password, salt)
			if err != nil {
				return err
			}
			key = k
		}

		path, err := s.Path(name)
		if err != nil {
			return err
		}

		s.disconnect()

		db, err := database.Open(&database.Config{
			Path:                    path,
			EncryptionKey:           key,
			SchemaVersion:           s.schemaVersion,
			DeleteIfMigrationNeeded: true,
			Scheduler:               s.writer,
		})
		if err != nil {
			return fmt.Errorf("connect '%s': %w", name, err)
		}

		s.mutex.Lock()
		s.db = db
		s.name = name
		s.mutex.Unlock()

		excludeFromBackup(path)

		slog.Info("database connected", "name", name, "path", path, "encrypted", key != nil)
		return nil
	})
}

// Delete closes the database called name if it is the connected one, forgets
// its file name postfix and removes the data file with its side files.
// Missing files are not an error.
func (s *Storage) Delete(ctx context.Context, name string) error {
	return s.writer.Do(ctx, func(ctx context.Context) error {
		s.mutex.RLock()
		connected := s.db != nil && s.name == name
		s.mutex.RUnlock()
		if connected {
			s.disconnect()
		}

		postfix, exists := s.settings.String(name + postfixKey)
		if !exists {
			return nil
		}
		path := s.pathFor(name, postfix)

		err := s.settings.Remove(name + postfixKey)
		if err != nil {
			return err
		}

		for _, p := range append([]string{path}, metaFiles(path)...) {
			err := os.RemoveAll(p)
			if err != nil {
				return fmt.Errorf("delete '%s': %w", p, err)
			}
		}

		slog.Info("database deleted", "name", name, "path", path)
		return nil
	})
}

// Disconnect closes the connected database, if any. The files stay.
func (s *Storage) Disconnect(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context) error {
		s.disconnect()
		return nil
	})
}

func (s *Storage) disconnect() {
	s.mutex.Lock()
	db := s.db
	s.db = nil
	s.name = ""
	s.mutex.Unlock()

	if db != nil {
		db.Invalidate()
	}
}

// Path returns the data file of name, creating its postfix on first use.
func (s *Storage) Path(name string) (string, error) {
	postfix, exists := s.settings.String(name + postfixKey)
	if !exists {
		postfix = uuid.New().String()
		err := s.settings.Set(name+postfixKey, postfix)
		if err != nil {
			return "", fmt.Errorf("store postfix: %w", err)
		}
	}
	return s.pathFor(name, postfix), nil
}

func (s *Storage) pathFor(name, postfix string) string {
	return filepath.Join(s.dir, name+postfix+fileExtension)
}

func metaFiles(path string) []string {
	files := make([]string, len(metaFileExtensions))
	for i, ext := range metaFileExtensions {
		files[i] = path + "." + ext
	}
	return files
}

func excludeFromBackup(path string) {
	err := unix.Setxattr(path, backupXattr, []byte("false"), 0)
	if err != nil {
		slog.Warn("unable to exclude database from backups", "path", path, "error", err)
	}
}
