package observer

import (
	"path/filepath"
	"testing"
	"time"

	. "github.com/fulldump/biff"

	"github.com/fulldump/liverepo/database"
)

type item struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

func openTest(t *testing.T) *database.Database {
	db, err := database.Open(&database.Config{Path: filepath.Join(t.TempDir(), "test.realm")})
	AssertNil(err)
	db.Register("items", func() any { return &item{} })
	t.Cleanup(func() { db.Close() })
	return db
}

func add(db *database.Database, id, name string) {
	AssertNil(db.Write(func(tx *database.Tx) error {
		return tx.Add("items", id, &item{Id: id, Name: name}, true)
	}))
}

func receive[T any](t *testing.T, c chan T) T {
	select {
	case v := <-c:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
	var zero T
	return zero
}

func nothing[T any](t *testing.T, c chan T) {
	select {
	case v := <-c:
		t.Fatalf("unexpected notification %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCollection(t *testing.T) {
	db := openTest(t)
	add(db, "1", "one")

	sizes := make(chan int, 10)
	o := NewCollection(func(results *database.Results) {
		sizes <- results.Len()
	})
	AssertEqual(o.State(), Idle)

	AssertNil(o.Start(db.Objects("items")))
	AssertEqual(o.State(), Observing)
	AssertEqual(receive(t, sizes), 1)

	add(db, "2", "two")
	AssertEqual(receive(t, sizes), 2)

	o.Stop()
	o.Stop()
	AssertEqual(o.State(), Stopped)

	add(db, "3", "three")
	nothing(t, sizes)
}

func TestCollection_StopBeforeStart(t *testing.T) {
	db := openTest(t)

	sizes := make(chan int, 10)
	o := NewCollection(func(results *database.Results) {
		sizes <- results.Len()
	})
	o.Stop()

	AssertNil(o.Start(db.Objects("items")))
	AssertEqual(o.State(), Stopped)

	add(db, "1", "one")
	nothing(t, sizes)
}

func TestObject(t *testing.T) {
	db := openTest(t)
	add(db, "1", "one")

	type event struct {
		name string
		ok   bool
	}
	events := make(chan event, 10)
	o := NewObject(func(object any, ok bool) {
		if !ok {
			events <- event{ok: false}
			return
		}
		events <- event{name: object.(*item).Name, ok: true}
	})
	AssertNil(o.Start(db.ObjectRef("items", "1")))

	add(db, "1", "uno")
	AssertEqual(receive(t, events), event{name: "uno", ok: true})

	AssertNil(db.Write(func(tx *database.Tx) error {
		tx.Delete("items", "1")
		return nil
	}))
	AssertEqual(receive(t, events), event{ok: false})

	o.Stop()
	AssertEqual(o.State(), Stopped)
}

func TestStart_ClosedDatabase(t *testing.T) {
	db := openTest(t)
	db.Close()

	o := NewCollection(func(results *database.Results) {})
	err := o.Start(db.Objects("items"))
	AssertEqual(err, database.ErrClosed)
	AssertEqual(o.State(), Idle)
}

func TestClose(t *testing.T) {
	db := openTest(t)
	add(db, "1", "one")

	closed := make(chan error, 10)

	collection := NewCollection(func(results *database.Results) {})
	collection.OnClose(func(err error) { closed <- err })
	AssertNil(collection.Start(db.Objects("items")))

	object := NewObject(func(object any, ok bool) {})
	object.OnClose(func(err error) { closed <- err })
	AssertNil(object.Start(db.ObjectRef("items", "1")))

	AssertNil(db.Close())
	AssertEqual(receive(t, closed), database.ErrClosed)
	AssertEqual(receive(t, closed), database.ErrClosed)
	nothing(t, closed)

	AssertEqual(collection.State(), Stopped)
	AssertEqual(object.State(), Stopped)
	collection.Stop()
}
