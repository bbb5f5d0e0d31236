package memory

import (
	"context"
	"sync"

	"github.com/dvloznov/finsight/internal/kv"
)

// Store is an in-memory implementation of kv.Store.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, kv.ErrClosed
	}

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}

	// Return a copy to avoid external modifications
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Put implements kv.Store.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

// Close implements kv.Store. Further calls fail with kv.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ensure Store implements kv.Store.
var _ kv.Store = (*Store)(nil)
