package repository

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/fulldump/liverepo/detach"
)

//liverepo:model
type Dog struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	Color       string    `json:"color"`
	CurrentCity string    `json:"current_city"`
}

func (m *Dog) Detached() *Dog {
	if m == nil {
		return nil
	}
	return &Dog{
		Id:          detach.Field(&m.Id),
		Name:        detach.Value(m.Name),
		Age:         detach.Value(m.Age),
		Color:       detach.Value(m.Color),
		CurrentCity: detach.Value(m.CurrentCity),
	}
}

//liverepo:model
type Person struct {
	Id     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Colors []string  `json:"colors"`
	Dogs   []*Dog    `json:"dogs"`
}

func (m *Person) Detached() *Person {
	if m == nil {
		return nil
	}
	return &Person{
		Id:     detach.Field(&m.Id),
		Name:   detach.Value(m.Name),
		Colors: detach.Slice(m.Colors),
		Dogs:   detach.Slice(m.Dogs),
	}
}

func (m *Person) PrimaryKey() (string, bool) {
	return m.Id.String(), m.Id != uuid.Nil
}

func pick[T any](options ...T) T {
	return options[rand.IntN(len(options))]
}

func randomDog() *Dog {
	return &Dog{
		Id:          uuid.New(),
		Name:        pick("Lucky", "Bucky", "Ducky"),
		Age:         pick(1, 2, 3, 4, 5),
		Color:       pick("red", "green", "blue"),
		CurrentCity: pick("city1", "city2", "city3"),
	}
}

func randomPerson() *Person {
	return &Person{
		Id:     uuid.New(),
		Name:   pick("Peter", "John", "Jake"),
		Colors: []string{"red", "green", "blue"},
		Dogs:   []*Dog{randomDog(), randomDog()},
	}
}

//liverepo:model
type Note struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

func (m *Note) Detached() *Note {
	if m == nil {
		return nil
	}
	return &Note{
		Key:  detach.Value(m.Key),
		Text: detach.Value(m.Text),
	}
}

func (m *Note) PrimaryKey() (string, bool) {
	return m.Key, m.Key != ""
}

func noteKeys(notes []*Note) []string {
	keys := make([]string, len(notes))
	for i, n := range notes {
		keys[i] = n.Key
	}
	return keys
}
