package database

import (
	"github.com/go-json-experiment/json/jsontext"
)

// Command is one line of the log. Every committed transaction is a single
// "commit" command carrying all its operations, so a transaction is either
// fully on disk or not at all.
type Command struct {
	Name      string         `json:"name"`
	Uuid      string         `json:"uuid"`
	Timestamp int64          `json:"timestamp"`
	Version   uint64         `json:"version"`
	Payload   jsontext.Value `json:"payload"`
}

const (
	OpPut    = "put"
	OpDelete = "delete"
	OpClear  = "clear"
)

type Op struct {
	Op    string         `json:"op"`
	Table string         `json:"table"`
	Key   string         `json:"key,omitzero"`
	Value jsontext.Value `json:"value,omitzero"`
}
