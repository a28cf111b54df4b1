// Package memdoc implements the KV and TurnLog collaborators in process
// memory. It backs tests and throwaway sessions where nothing should
// outlive the process.
package memdoc

import (
	"context"
	"sync"

	"github.com/lethanhdat/membank/memory"
)

// Store holds documents and ordered logs in maps. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
	logs map[string][][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{
		docs: make(map[string][]byte),
		logs: make(map[string][][]byte),
	}
}

// Get returns the document stored under key, or memory.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, memory.ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

// Put stores the document under key, replacing any previous value.
func (s *Store) Put(_ context.Context, key string, doc []byte) error {
	stored := make([]byte, len(doc))
	copy(stored, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = stored
	return nil
}

// Delete removes the document under key. Deleting an absent key is a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

// Append adds an entry to the ordered log under key.
func (s *Store) Append(_ context.Context, key string, entry []byte) error {
	stored := make([]byte, len(entry))
	copy(stored, entry)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[key] = append(s.logs[key], stored)
	return nil
}

// Scan returns the log entries under key in insertion order. A missing
// key scans as empty.
func (s *Store) Scan(_ context.Context, key string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[key]
	out := make([][]byte, len(entries))
	for i, entry := range entries {
		out[i] = make([]byte, len(entry))
		copy(out[i], entry)
	}
	return out, nil
}

// Clear removes the entire log under key.
func (s *Store) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, key)
	return nil
}
