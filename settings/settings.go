// Package settings keeps small string values that must survive restarts,
// such as the per-install file name postfix of each database.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

type Store struct {
	path   string
	values map[string]string
	mutex  *sync.Mutex
}

// Open reads the settings file at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: map[string]string{},
		mutex:  &sync.Mutex{},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse settings '%s': %w", path, err)
	}
	if len(bytes.TrimSpace(standardized)) == 0 {
		return s, nil
	}

	err = json.Unmarshal(standardized, &s.values)
	if err != nil {
		return nil, fmt.Errorf("parse settings '%s': %w", path, err)
	}

	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) String(key string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, exists := s.values[key]
	return value, exists
}

func (s *Store) Set(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	old, existed := s.values[key]
	s.values[key] = value

	err := s.save()
	if err != nil {
		if existed {
			s.values[key] = old
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	old, existed := s.values[key]
	if !existed {
		return nil
	}
	delete(s.values, key)

	err := s.save()
	if err != nil {
		s.values[key] = old
		return err
	}
	return nil
}

func (s *Store) save() error {
	data, err := json.Marshal(s.values, json.Deterministic(true), jsontext.WithIndent("    "))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(s.path), 0755)
	if err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	err = atomic.WriteFile(s.path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
