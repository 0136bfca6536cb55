package graphstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
)

// MemoryStore is an in-process Store, useful for tests and single-node
// deployments that don't need the KGs to outlive the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.Name] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[name]
	if !ok {
		return Record{}, apperrors.NotFoundf("kg", name)
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[name]; !ok {
		return apperrors.NotFoundf("kg", name)
	}
	delete(s.data, name)
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[name]
	return ok, nil
}

func (s *MemoryStore) Query(ctx context.Context, name string, pattern QueryPattern) ([]QueryMatch, error) {
	rec, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	var edges []Edge
	if err := json.Unmarshal(rec.Relationships, &edges); err != nil {
		return nil, apperrors.Invalidf("kg "+name+" has malformed relationships", err)
	}
	return runQuery(edges, pattern), nil
}
