// Package kv defines the string-keyed blob store that durable mode writes to.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("kv: store is closed")

// Store is a minimal key-value store. Values are opaque bytes; callers own
// the encoding. Put overwrites unconditionally.
type Store interface {
	// Get returns the value for key. ok is false when the key was never written.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases resources held by the store.
	Close() error
}
