package internal

import (
	"context"
	"sort"
	"sync"

	"github.com/lychee-technology/norma"
)

// MemoryStorage keeps normalized representations in an in-process map. Both
// directions deep-copy, so callers never share state with the store. Default
// adapter and the usual test double.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]norma.NormalizedRepresentation
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]norma.NormalizedRepresentation)}
}

func (s *MemoryStorage) Load(_ context.Context, key string) (norma.NormalizedRepresentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.data[key]
	if !ok {
		return norma.NormalizedRepresentation{}, nil
	}
	return stored.Clone(), nil
}

func (s *MemoryStorage) Save(_ context.Context, key string, data norma.NormalizedRepresentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data.Clone()
	return nil
}

func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
