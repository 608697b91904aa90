package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fulldump/liverepo/repository"
	"github.com/fulldump/liverepo/storage"
	"github.com/fulldump/liverepo/stream"
)

type UserService struct {
	repository *repository.Repository[*UserModel]
}

func NewUserService(store storage.Context) *UserService {
	return &UserService{
		repository: repository.New[*UserModel](store, repository.WithTable("users")),
	}
}

func toUsers(models []*UserModel) []*User {
	users := make([]*User, len(models))
	for i, m := range models {
		users[i] = m.User()
	}
	return users
}

// GetAll streams every user now and after each change.
func (s *UserService) GetAll(ctx context.Context) *stream.Stream[[]*User] {
	return stream.Map(s.repository.Stream(ctx), toUsers)
}

// Watch is GetAll backed by the shared repository publisher, so any number
// of watchers cost a single observation.
func (s *UserService) Watch(ctx context.Context) *stream.Stream[[]*User] {
	sub := s.repository.Publisher().Subscribe()
	stop := context.AfterFunc(ctx, sub.Close)
	sub.OnTermination(func() { stop() })
	return stream.Map(sub, toUsers)
}

func (s *UserService) List(ctx context.Context) ([]*User, error) {
	models, err := s.repository.Get(ctx)
	if err != nil {
		return nil, err
	}
	return toUsers(models), nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	m, err := s.repository.GetByKey(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.User(), nil
}

// Add stores user, giving it an id when it has none.
func (s *UserService) Add(ctx context.Context, user *User) error {
	if strings.TrimSpace(user.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if user.Id == uuid.Nil {
		user.Id = uuid.New()
	}
	return s.repository.Insert(ctx, newUserModel(user))
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repository.RemoveByKey(ctx, id)
}

func (s *UserService) Rename(ctx context.Context, id uuid.UUID, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	return s.repository.UpdateByKey(ctx, id, func(m *UserModel) error {
		m.Name = name
		return nil
	})
}
