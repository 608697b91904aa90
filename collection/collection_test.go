package collection

import (
	"testing"

	. "github.com/fulldump/biff"
)

type person struct {
	Id   string   `json:"id"`
	Name string   `json:"name"`
	Age  int      `json:"age"`
	Tags []string `json:"tags"`
}

func newRow(t *testing.T, p *person) *Row {
	payload, err := Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return &Row{Key: p.Id, Payload: payload}
}

func TestCollection_PutGet(t *testing.T) {
	c := NewCollection("person")

	c.Put(newRow(t, &person{Id: "1", Name: "Pablo"}))
	c.Put(newRow(t, &person{Id: "2", Name: "Sara"}))

	row, ok := c.Get("2")
	AssertTrue(ok)
	AssertEqual(row.Key, "2")
	AssertEqual(c.Len(), 2)
	AssertTrue(c.Has("1"))
	AssertFalse(c.Has("3"))
}

func TestCollection_PutReplaces(t *testing.T) {
	c := NewCollection("person")

	c.Put(newRow(t, &person{Id: "1", Name: "Pablo"}))
	old, replaced := c.Put(newRow(t, &person{Id: "1", Name: "Jaime"}))

	AssertTrue(replaced)
	AssertEqual(old.Key, "1")
	AssertEqual(c.Len(), 1)
}

func TestCollection_TraverseInKeyOrder(t *testing.T) {
	c := NewCollection("person")
	for _, id := range []string{"c", "a", "b"} {
		c.Put(newRow(t, &person{Id: id}))
	}

	AssertEqual(c.Keys(), []string{"a", "b", "c"})
}

func TestCollection_DeleteClear(t *testing.T) {
	c := NewCollection("person")
	for _, id := range []string{"a", "b", "c"} {
		c.Put(newRow(t, &person{Id: id}))
	}

	_, ok := c.Delete("b")
	AssertTrue(ok)
	_, ok = c.Delete("b")
	AssertFalse(ok)
	AssertEqual(c.Keys(), []string{"a", "c"})

	removed := c.Clear()
	AssertEqual(len(removed), 2)
	AssertEqual(c.Len(), 0)
}

func TestCollection_Live(t *testing.T) {
	c := NewCollection("person")
	row := newRow(t, &person{Id: "1", Name: "Pablo", Tags: []string{"a"}})
	c.Put(row)

	_, err := c.Live(row)
	AssertNotNil(err) // not registered yet

	c.Register(func() any { return &person{} })
	object, err := c.Live(row)
	AssertNil(err)
	AssertEqual(object, &person{Id: "1", Name: "Pablo", Tags: []string{"a"}})

	again, _ := c.Live(row)
	AssertTrue(again == object)

	c.Reset(row)
	fresh, _ := c.Live(row)
	AssertTrue(fresh != object)
}

func TestCollection_NilSliceRoundTrip(t *testing.T) {
	c := NewCollection("person")
	c.Register(func() any { return &person{} })
	row := newRow(t, &person{Id: "1"})

	object, err := c.Live(row)
	AssertNil(err)
	AssertNil(object.(*person).Tags)
}

func TestMatch(t *testing.T) {
	row := newRow(t, &person{Id: "1", Name: "Pablo", Age: 30})

	match, err := Match(row, map[string]interface{}{"age": map[string]interface{}{"$gte": 18}})
	AssertNil(err)
	AssertTrue(match)

	match, err = Match(row, map[string]interface{}{"name": "Sara"})
	AssertNil(err)
	AssertFalse(match)

	match, err = Match(row, nil)
	AssertNil(err)
	AssertTrue(match)
}
