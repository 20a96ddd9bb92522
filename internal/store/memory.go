package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[chat.SessionKey]chat.History
}

var _ TranscriptStore = &MemoryStore{}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[chat.SessionKey]chat.History{}}
}

// Load implements TranscriptStore.
func (s *MemoryStore) Load(_ context.Context, key chat.SessionKey) (chat.History, error) {
	if !key.Valid() {
		return chat.History{}, ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.docs[key]
	if !ok {
		return chat.History{}, errors.Wrapf(ErrNotFound, "memory store: %s", key)
	}
	return cloneHistory(h), nil
}

// Save implements TranscriptStore.
func (s *MemoryStore) Save(_ context.Context, history chat.History) error {
	key := history.Key()
	if !key.Valid() {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = cloneHistory(history)
	return nil
}

// Close implements TranscriptStore.
func (s *MemoryStore) Close() error { return nil }
