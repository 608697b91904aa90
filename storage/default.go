package storage

import (
	"context"
	"sync"
)

var (
	defaultOnce    sync.Once
	defaultStorage Context
)

// Default returns the process-wide storage context, created on first use
// under DefaultDir. It panics if the settings file cannot be read.
func Default() Context {
	defaultOnce.Do(func() {
		s, err := New(Options{})
		if err != nil {
			panic(err)
		}
		defaultStorage = s
	})
	return defaultStorage
}

func ConnectDefault(ctx context.Context, c Context) error {
	return c.Connect(ctx, DefaultName, nil, nil)
}

func DeleteDefault(ctx context.Context, c Context) error {
	return c.Delete(ctx, DefaultName)
}

// ConnectWithPassword connects to name using the default salt.
func ConnectWithPassword(ctx context.Context, c Context, name, password string) error {
	return c.Connect(ctx, name, &password, nil)
}
