package study

import (
	"context"
	"sync"
	"time"
)

// OwnerKeys resolves an organizer's public key. *identity.MemoryStore and
// *identity.PostgresStore both satisfy this interface.
type OwnerKeys interface {
	LookupPublicKey(ctx context.Context, id string) ([]byte, error)
}

// MemoryStore is an in-memory, thread-safe Store implementation for tests
// and single-process development.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Study
	order  []string
	owners OwnerKeys
}

// NewMemoryStore creates an empty MemoryStore. owners resolves organizer
// keys for RewardInfo.
func NewMemoryStore(owners OwnerKeys) *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Study), owners: owners}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, st *Study) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	cp.CreatedAt = time.Now().UTC()
	s.byID[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, owner *string) ([]*Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	studies := []*Study{}
	for _, id := range s.order {
		st := s.byID[id]
		if owner != nil && st.Owner != *owner {
			continue
		}
		cp := *st
		studies = append(studies, &cp)
	}
	return studies, nil
}

// RewardInfo implements Store.
func (s *MemoryStore) RewardInfo(ctx context.Context, id string) (*RewardInfo, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.owners.LookupPublicKey(ctx, st.Owner)
	if err != nil {
		return nil, ErrNotFound
	}
	return &RewardInfo{Reward: st.Reward, OwnerKey: key}, nil
}

// ListWebBased implements Store.
func (s *MemoryStore) ListWebBased(_ context.Context) ([]*Study, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	studies := []*Study{}
	for _, id := range s.order {
		st := s.byID[id]
		if st.WebBased && st.StudyURL != nil {
			cp := *st
			studies = append(studies, &cp)
		}
	}
	return studies, nil
}
