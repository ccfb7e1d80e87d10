package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed     = errors.New("storage closed")
	ErrInvalidKey = errors.New("storage: key required")
)

// Store is the minimal persistence API used by the recurring order store.
type Store interface {
	// Get returns the value stored under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config configures storage.
//
// Driver values: "memory", "file", "sqlite", "postgres".
type Config struct {
	Driver      string
	Path        string        // file: directory; sqlite: database file
	DSN         string        // postgres only
	BusyTimeout time.Duration // sqlite only; 0 means default
}
