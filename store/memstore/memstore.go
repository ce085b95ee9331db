// Package memstore is an in-memory store.Backend. Each Store is
// an independent value owned by whoever constructed it, so tests
// can run in parallel without shared state or a reset step.
package memstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/byte4ever/hashit/store"
)

// Store keeps entries in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ store.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string][]byte)}
}

// Exists implements store.Backend.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[key]

	return ok, nil
}

// OpenRead implements store.Backend. The handle reads a
// snapshot taken at open time.
func (s *Store) OpenRead(
	_ context.Context,
	key string,
) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	by, ok := s.entries[key]
	if !ok {
		return nil, store.NotFound(key, nil)
	}

	return io.NopCloser(bytes.NewReader(bytes.Clone(by))), nil
}

// OpenWrite implements store.Backend. Truncate empties the
// entry immediately; every Write appends under the lock.
func (s *Store) OpenWrite(
	_ context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok || mode == store.Truncate {
		s.entries[key] = []byte{}
	}

	return &writer{s: s, key: key}, nil
}

// Create implements store.Backend.
func (s *Store) Create(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = []byte{}

	return nil
}

// Put seeds key with a copy of data.
func (s *Store) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = bytes.Clone(data)
	if s.entries[key] == nil {
		s.entries[key] = []byte{}
	}
}

// Get returns a copy of the bytes stored at key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	by, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	return bytes.Clone(by), true
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

type writer struct {
	s      *Store
	key    string
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, store.ErrClosed
	}

	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	w.s.entries[w.key] = append(w.s.entries[w.key], p...)

	return len(p), nil
}

func (w *writer) Close() error {
	w.closed = true

	return nil
}
