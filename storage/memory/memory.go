package memory

import (
	"context"
	"sync"

	"logitrack/storage"
)

// Store is an in-process key-value store. Watchers are notified
// synchronously once Set has released the lock.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers storage.Watchers
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

var _ storage.IKeyValue = (*Store)(nil)

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	// return copy
	return append([]byte(nil), v...), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), value...)
	s.mu.Unlock()

	s.watchers.Notify(key)
	return nil
}

func (s *Store) Watch(key string, fn func()) func() {
	return s.watchers.Add(key, fn)
}

func (s *Store) Close() {}
