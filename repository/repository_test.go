package repository

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	. "github.com/fulldump/biff"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/fulldump/liverepo/actor"
	"github.com/fulldump/liverepo/database"
	"github.com/fulldump/liverepo/storage"
)

func newTestRepository(t *testing.T) (*Repository[*Person], *storage.Storage) {
	writer := actor.New("test")
	t.Cleanup(writer.Stop)

	store, err := storage.New(storage.Options{Dir: t.TempDir(), Writer: writer})
	AssertNil(err)
	AssertNil(storage.ConnectDefault(context.Background(), store))
	t.Cleanup(func() {
		storage.DeleteDefault(context.Background(), store)
	})

	return New[*Person](store), store
}

func assertSame(t *testing.T, obtained, expected any) {
	t.Helper()
	if diff := cmp.Diff(expected, obtained); diff != "" {
		t.Fatalf("mismatch (-expected +obtained):\n%s", diff)
	}
}

func keysOf(people []*Person) []string {
	keys := make([]string, len(people))
	for i, p := range people {
		keys[i] = p.Id.String()
	}
	sort.Strings(keys)
	return keys
}

func TestRepository_TableName(t *testing.T) {
	repo, store := newTestRepository(t)
	AssertEqual(repo.Table(), "Person")
	AssertEqual(New[*Person](store, WithTable("people")).Table(), "people")
}

func TestRepository_NotConnected(t *testing.T) {
	writer := actor.New("test")
	defer writer.Stop()
	store, err := storage.New(storage.Options{Dir: t.TempDir(), Writer: writer})
	AssertNil(err)

	repo := New[*Person](store)
	_, err = repo.Get(context.Background())
	AssertEqual(err, storage.ErrDatabaseNotFound)
}

func TestRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Insert(ctx, person))

	saved, err := repo.GetByKey(ctx, person.Id)
	AssertNil(err)
	assertSame(t, saved, person)

	saved, err = repo.GetByKey(ctx, person.Id.String())
	AssertNil(err)
	assertSame(t, saved, person)
}

func TestRepository_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Insert(ctx, person))
	err := repo.Insert(ctx, person)
	AssertTrue(errors.Is(err, database.ErrDuplicateKey))
}

func TestRepository_InsertWithoutKey(t *testing.T) {
	repo, _ := newTestRepository(t)

	err := repo.Insert(context.Background(), &Person{Name: "nobody"})
	AssertEqual(err, ErrKeyNotFound)

	err = repo.Insert(context.Background(), nil)
	AssertTrue(errors.Is(err, ErrKeyNotFound))
}

func TestRepository_InsertAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	existing := randomPerson()
	AssertNil(repo.Insert(ctx, existing))

	err := repo.InsertAll(ctx, []*Person{randomPerson(), existing, randomPerson()})
	AssertTrue(errors.Is(err, database.ErrDuplicateKey))

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(len(all), 1)
}

func TestRepository_Isolation(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Insert(ctx, person))

	person.Name = "changed after insert"
	person.Dogs[0].Name = "changed after insert"

	saved, err := repo.GetByKey(ctx, person.Id)
	AssertNil(err)
	AssertNotEqual(saved.Name, "changed after insert")
	AssertNotEqual(saved.Dogs[0].Name, "changed after insert")

	saved.Name = "changed after get"
	saved.Colors[0] = "changed after get"

	again, err := repo.GetByKey(ctx, person.Id)
	AssertNil(err)
	AssertNotEqual(again.Name, "changed after get")
	AssertEqual(again.Colors[0], "red")
}

func TestRepository_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Upsert(ctx, person))
	AssertNil(repo.Upsert(ctx, person))

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(len(all), 1)
	assertSame(t, all[0], person)
}

func TestRepository_UpsertExisting(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	people := []*Person{randomPerson(), randomPerson()}
	AssertNil(repo.InsertAll(ctx, people))

	people[0].Name = "Updated"
	people[1].Dogs = nil
	AssertNil(repo.UpsertAll(ctx, append(people, randomPerson())))

	first, err := repo.GetByKey(ctx, people[0].Id)
	AssertNil(err)
	AssertEqual(first.Name, "Updated")

	second, err := repo.GetByKey(ctx, people[1].Id)
	AssertNil(err)
	AssertNil(second.Dogs)

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(len(all), 3)
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()

	Alternative("Update", func(a *A) {
		repo, _ := newTestRepository(t)
		person := randomPerson()
		AssertNil(repo.Insert(ctx, person))

		a.Alternative("by model", func(a *A) {
			err := repo.Update(ctx, person, func(p *Person) error {
				p.Name = "Renamed"
				return nil
			})
			AssertNil(err)

			saved, _ := repo.GetByKey(ctx, person.Id)
			AssertEqual(saved.Name, "Renamed")
		})

		a.Alternative("by key", func(a *A) {
			err := repo.UpdateByKey(ctx, person.Id, func(p *Person) error {
				p.Dogs = append(p.Dogs, randomDog())
				return nil
			})
			AssertNil(err)

			saved, _ := repo.GetByKey(ctx, person.Id)
			AssertEqual(len(saved.Dogs), 3)
		})
	})
}

func TestRepository_UpdateFailures(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Insert(ctx, person))

	err := repo.UpdateByKey(ctx, uuid.New(), func(p *Person) error {
		p.Name = "ghost"
		return nil
	})
	AssertTrue(errors.Is(err, ErrObjectNotFound))

	err = repo.Update(ctx, &Person{}, func(p *Person) error { return nil })
	AssertEqual(err, ErrKeyNotFound)

	boom := errors.New("boom")
	err = repo.Update(ctx, person, func(p *Person) error {
		p.Name = "half done"
		return boom
	})
	AssertEqual(err, boom)

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(len(all), 1)
	assertSame(t, all[0], person)
}

func TestRepository_UpdateKeepsPrimaryKey(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Insert(ctx, person))

	newId := uuid.New()
	err := repo.Update(ctx, person, func(p *Person) error {
		p.Id = newId
		p.Name = "moved"
		return nil
	})
	AssertTrue(errors.Is(err, ErrKeyChanged))

	err = repo.UpdateByKey(ctx, person.Id, func(p *Person) error {
		p.Id = uuid.Nil
		return nil
	})
	AssertTrue(errors.Is(err, ErrKeyChanged))

	saved, err := repo.GetByKey(ctx, person.Id)
	AssertNil(err)
	assertSame(t, saved, person)

	_, err = repo.GetByKey(ctx, newId)
	AssertTrue(errors.Is(err, ErrObjectNotFound))

	other := randomPerson()
	other.Id = newId
	AssertNil(repo.Insert(ctx, other))

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(keysOf(all), keysOf([]*Person{person, other}))
}

func TestRepository_Remove(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	a, b := randomPerson(), randomPerson()
	AssertNil(repo.InsertAll(ctx, []*Person{a, b}))

	AssertNil(repo.Remove(ctx, a))
	AssertNil(repo.RemoveByKey(ctx, b.Id))

	_, err := repo.GetByKey(ctx, a.Id)
	AssertTrue(errors.Is(err, ErrObjectNotFound))
	AssertTrue(errors.Is(err, ErrKeyNotFound))

	err = repo.RemoveByKey(ctx, a.Id)
	AssertTrue(errors.Is(err, ErrObjectNotFound))

	err = repo.Remove(ctx, &Person{})
	AssertEqual(err, ErrKeyNotFound)
}

func TestRepository_RemoveAllPartialFailure(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	a, b, c := randomPerson(), randomPerson(), randomPerson()
	AssertNil(repo.InsertAll(ctx, []*Person{a, c}))

	err := repo.RemoveAll(ctx, []*Person{a, b, c})
	AssertTrue(errors.Is(err, ErrObjectNotFound))

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(keysOf(all), []string{c.Id.String()})
}

func TestRepository_Scenario(t *testing.T) {
	ctx := context.Background()
	writer := actor.New("test")
	defer writer.Stop()
	store, err := storage.New(storage.Options{Dir: t.TempDir(), Writer: writer})
	AssertNil(err)
	AssertNil(storage.ConnectDefault(ctx, store))

	repo := New[*Note](store)
	AssertNil(repo.InsertAll(ctx, []*Note{{Key: "A"}, {Key: "B"}, {Key: "C"}}))

	notes, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(noteKeys(notes), []string{"A", "B", "C"})

	AssertNil(repo.RemoveByKey(ctx, "B"))
	notes, err = repo.Get(ctx)
	AssertNil(err)
	AssertEqual(noteKeys(notes), []string{"A", "C"})

	count, err := repo.Count(ctx)
	AssertNil(err)
	AssertEqual(count, 2)

	AssertNil(repo.Clear(ctx))
	notes, err = repo.Get(ctx)
	AssertNil(err)
	AssertEqual(len(notes), 0)

	count, err = repo.Count(ctx)
	AssertNil(err)
	AssertEqual(count, 0)
}

func TestRepository_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	AssertNil(repo.InsertAll(ctx, []*Person{randomPerson(), randomPerson()}))

	fresh := []*Person{randomPerson(), randomPerson(), randomPerson()}
	AssertNil(repo.ReplaceAll(ctx, fresh))

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(keysOf(all), keysOf(fresh))
}

func TestRepository_ReplaceAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	old := []*Person{randomPerson(), randomPerson()}
	AssertNil(repo.InsertAll(ctx, old))

	duplicated := randomPerson()
	err := repo.ReplaceAll(ctx, []*Person{duplicated, duplicated})
	AssertTrue(errors.Is(err, database.ErrDuplicateKey))

	all, err := repo.Get(ctx)
	AssertNil(err)
	AssertEqual(keysOf(all), keysOf(old))
}

func TestRepository_GetByAndWhere(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	peter := randomPerson()
	peter.Name = "Peter"
	john := randomPerson()
	john.Name = "John"
	AssertNil(repo.InsertAll(ctx, []*Person{peter, john}))

	found, err := repo.GetBy(ctx, func(p *Person) bool {
		return p.Name == "Peter"
	})
	AssertNil(err)
	AssertEqual(keysOf(found), []string{peter.Id.String()})

	found, err = repo.GetWhere(ctx, map[string]interface{}{"name": "John"})
	AssertNil(err)
	AssertEqual(keysOf(found), []string{john.Id.String()})
}

func TestRepository_PersistsAcrossReconnect(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository(t)

	person := randomPerson()
	AssertNil(repo.Insert(ctx, person))
	AssertNil(storage.ConnectDefault(ctx, store))

	saved, err := repo.GetByKey(ctx, person.Id)
	AssertNil(err)
	assertSame(t, saved, person)
}

func TestKey(t *testing.T) {
	id := uuid.New()
	type named string

	cases := map[any]string{
		"abc":       "abc",
		id:          id.String(),
		42:          "42",
		int64(-7):   "-7",
		uint8(9):    "9",
		named("xy"): "xy",
	}
	for input, expected := range cases {
		key, err := Key(input)
		AssertNil(err)
		AssertEqual(key, expected)
	}

	_, err := Key(3.14)
	AssertTrue(errors.Is(err, ErrKeyNotFound))
}

func waitTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
