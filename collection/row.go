package collection

import (
	"github.com/go-json-experiment/json/jsontext"
)

type Row struct {
	Key     string         // primary key
	Payload jsontext.Value // last committed value
	Object  any            // live decoded value, nil until first accessed
}

// Less orders rows by primary key.
func (r *Row) Less(than *Row) bool {
	return r.Key < than.Key
}
