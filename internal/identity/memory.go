package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory, thread-safe Store implementation for tests
// and single-process development.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Identity
	order  []string
	issued [][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Identity)}
}

// Register implements Store.
func (s *MemoryStore) Register(_ context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[ident.ID]; exists {
		return nil
	}
	cp := *ident
	cp.CreatedAt = time.Now().UTC()
	s.byID[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ident
	return &cp, nil
}

// LookupPublicKey implements Store.
func (s *MemoryStore) LookupPublicKey(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.byID[id]
	if !ok || ident.PublicKey == nil {
		return nil, ErrNotFound
	}
	return ident.PublicKey, nil
}

// ListPublicKeys implements Store.
func (s *MemoryStore) ListPublicKeys(_ context.Context) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := [][]byte{}
	for _, id := range s.order {
		if key := s.byID[id].PublicKey; key != nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// RecordIssuedCredential implements Store.
func (s *MemoryStore) RecordIssuedCredential(_ context.Context, signature []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, signature)
	return nil
}

// ListIssuedCredentials implements Store.
func (s *MemoryStore) ListIssuedCredentials(_ context.Context) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sigs := make([][]byte, len(s.issued))
	copy(sigs, s.issued)
	return sigs, nil
}
