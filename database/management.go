package database

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// management is the metadata kept in the .management side file.
type management struct {
	SchemaVersion uint64 `json:"schema_version"`
	KeyCheck      string `json:"key_check,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

func managementPath(path string) string {
	return path + ".management"
}

// readManagement returns nil without error when the file does not exist.
func readManagement(path string) (*management, error) {
	data, err := os.ReadFile(managementPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read management: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid management file: %w", err)
	}

	m := &management{}
	err = json.Unmarshal(standardized, m)
	if err != nil {
		return nil, fmt.Errorf("invalid management file: %w", err)
	}

	return m, nil
}

func writeManagement(path string, m *management) error {
	data, err := json.Marshal(m, jsontext.WithIndent("    "))
	if err != nil {
		return fmt.Errorf("encode management: %w", err)
	}

	err = atomic.WriteFile(managementPath(path), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write management: %w", err)
	}

	return nil
}
