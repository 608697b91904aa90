package collection

import (
	"fmt"

	"github.com/SierraSoftworks/connor"
)

// Match reports whether the committed payload of row satisfies a
// mongo-style filter such as {"age": {"$gte": 18}}. An empty filter matches
// every row.
func Match(row *Row, filter map[string]interface{}) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}

	rowData := map[string]interface{}{}
	err := Unmarshal(row.Payload, &rowData)
	if err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}

	match, err := connor.Match(filter, rowData)
	if err != nil {
		return false, fmt.Errorf("match: %w", err)
	}

	return match, nil
}
