package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fulldump/liverepo/stream"
)

var ErrInvalidName = errors.New("invalid name")

type Servicer interface {
	GetAll(ctx context.Context) *stream.Stream[[]*User]
	Watch(ctx context.Context) *stream.Stream[[]*User]
	List(ctx context.Context) ([]*User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	Add(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	Rename(ctx context.Context, id uuid.UUID, name string) error
}
