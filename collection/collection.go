// Package collection holds the rows of one record type, ordered by primary
// key. It knows nothing about files or transactions; the database package
// owns persistence and calls into a Collection after a commit.
package collection

import (
	"fmt"
	"sync"

	"github.com/google/btree"
)

type Collection struct {
	Name  string
	rows  *btree.BTreeG[*Row]
	newFn func() any
	mutex *sync.RWMutex
}

func NewCollection(name string) *Collection {
	return &Collection{
		Name:  name,
		rows:  btree.NewG(32, func(a, b *Row) bool { return a.Less(b) }),
		mutex: &sync.RWMutex{},
	}
}

// Register sets the constructor used to decode live objects. Rows loaded
// before registration keep only their payload until then.
func (c *Collection) Register(newFn func() any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.newFn != nil {
		return
	}
	c.newFn = newFn
}

func (c *Collection) Get(key string) (*Row, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.rows.Get(&Row{Key: key})
}

func (c *Collection) Has(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.rows.Has(&Row{Key: key})
}

// Put inserts the row or replaces the one with the same key.
func (c *Collection) Put(row *Row) (old *Row, replaced bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.rows.ReplaceOrInsert(row)
}

func (c *Collection) Delete(key string) (*Row, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.rows.Delete(&Row{Key: key})
}

// Clear removes every row and returns them.
func (c *Collection) Clear() []*Row {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := make([]*Row, 0, c.rows.Len())
	c.rows.Ascend(func(row *Row) bool {
		removed = append(removed, row)
		return true
	})
	c.rows.Clear(false)

	return removed
}

func (c *Collection) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.rows.Len()
}

// Traverse visits rows in key order until f returns false.
func (c *Collection) Traverse(f func(row *Row) bool) {
	c.mutex.RLock()
	rows := make([]*Row, 0, c.rows.Len())
	c.rows.Ascend(func(row *Row) bool {
		rows = append(rows, row)
		return true
	})
	c.mutex.RUnlock()

	for _, row := range rows {
		if !f(row) {
			return
		}
	}
}

func (c *Collection) Keys() []string {
	keys := []string{}
	c.Traverse(func(row *Row) bool {
		keys = append(keys, row.Key)
		return true
	})
	return keys
}

// Live returns the live object of the row, decoding the payload the first
// time it is needed.
func (c *Collection) Live(row *Row) (any, error) {
	if row.Object != nil {
		return row.Object, nil
	}

	c.mutex.RLock()
	newFn := c.newFn
	c.mutex.RUnlock()
	if newFn == nil {
		return nil, fmt.Errorf("collection '%s' has no registered type", c.Name)
	}

	object := newFn()
	err := Unmarshal(row.Payload, object)
	if err != nil {
		return nil, fmt.Errorf("decode row '%s': %w", row.Key, err)
	}
	row.Object = object

	return object, nil
}

// Reset drops the live object so the next Live call decodes the committed
// payload again.
func (c *Collection) Reset(row *Row) {
	row.Object = nil
}
