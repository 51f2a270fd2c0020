package datastore

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/opforge/memo-framework/operations"
)

// MemoryStore is a Store backed by a process-local map. Values are kept as
// stored, without serialization. Useful in tests and as a building block for
// short-lived pipelines.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]any
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]any)}
}

func (s *MemoryStore) Get(_ context.Context, op *operations.Operation) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.results[op.Key()]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", op.Digest(), ErrKeyNotFound)
	}

	return v, nil
}

func (s *MemoryStore) Put(_ context.Context, op *operations.Operation, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[op.Key()] = value

	return nil
}

func (s *MemoryStore) Contains(_ context.Context, op *operations.Operation) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.results[op.Key()]

	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, op *operations.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, op.Key())

	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make(map[string]any)

	return nil
}

// Keys iterates over a snapshot of the stored keys, so concurrent writes
// during iteration are safe but not observed.
func (s *MemoryStore) Keys(_ context.Context) iter.Seq2[string, error] {
	s.mu.RLock()
	keys := make([]string, 0, len(s.results))
	for k := range s.results {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.results)
}
