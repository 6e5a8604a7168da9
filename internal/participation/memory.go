package participation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation for tests
// and single-process development. It also satisfies ledger.StagedConsumer.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Staged
	order []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Staged)}
}

// Stage implements Store.
func (s *MemoryStore) Stage(_ context.Context, iv, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.byID[id] = &Staged{ID: id, IV: iv, Data: data, CreatedAt: time.Now().UTC()}
	s.order = append(s.order, id)
	return id, nil
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(_ context.Context, id string) (*Staged, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, id string) ([]byte, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	delete(s.byID, id)
	return p.IV, p.Data, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]*Staged, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	staged := []*Staged{}
	for _, id := range s.order {
		if p, ok := s.byID[id]; ok {
			cp := *p
			staged = append(staged, &cp)
		}
	}
	return staged, nil
}
