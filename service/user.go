package service

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

type User struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Age   int       `json:"age"`
	Email string    `json:"email"`
}

// RandomUser returns a user with a fresh id and made up details.
func RandomUser() *User {
	names := []string{"John", "Sara", "Peter", "Adam"}
	name := names[rand.IntN(len(names))]
	return &User{
		Id:    uuid.New(),
		Name:  name,
		Age:   rand.IntN(100),
		Email: name + "@example.com",
	}
}

//go:generate go run github.com/fulldump/liverepo/cmd/detachgen

// UserModel is how a User is stored.
//
//liverepo:model
type UserModel struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Age   int       `json:"age"`
	Email string    `json:"email"`
}

func (m *UserModel) PrimaryKey() (string, bool) {
	return m.Id.String(), m.Id != uuid.Nil
}

func (m *UserModel) User() *User {
	return &User{
		Id:    m.Id,
		Name:  m.Name,
		Age:   m.Age,
		Email: m.Email,
	}
}

func newUserModel(u *User) *UserModel {
	return &UserModel{
		Id:    u.Id,
		Name:  u.Name,
		Age:   u.Age,
		Email: u.Email,
	}
}
