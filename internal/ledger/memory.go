package ledger

import (
	"context"
	"sync"
	"time"
)

// StagedConsumer removes a staged participation and returns its encrypted
// payload. *participation.MemoryStore satisfies this interface.
type StagedConsumer interface {
	Consume(ctx context.Context, id string) (iv, data []byte, err error)
}

// MemoryStore is an in-memory, thread-safe Store implementation, used by
// tests and single-process development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	tags    map[string]struct{}
	staging StagedConsumer
}

// NewMemoryStore creates an empty MemoryStore. staging may be nil if
// AppendConsuming is never used.
func NewMemoryStore(staging StagedConsumer) *MemoryStore {
	return &MemoryStore{tags: make(map[string]struct{}), staging: staging}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, e *Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(e)
}

// AppendConsuming implements Store. The tag check, the consume, and the
// append all run under one lock, so a duplicate tag never consumes the
// staged row and a missing row never appends.
func (s *MemoryStore) AppendConsuming(ctx context.Context, e *Entry, participationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.tags[e.Tag]; dup {
		return 0, ErrDuplicateTag
	}
	iv, data, err := s.staging.Consume(ctx, participationID)
	if err != nil {
		return 0, ErrStagedNotFound
	}
	e.IV, e.Data = iv, data
	return s.append(e)
}

// append assumes the lock is held.
func (s *MemoryStore) append(e *Entry) (int64, error) {
	if _, dup := s.tags[e.Tag]; dup {
		return 0, ErrDuplicateTag
	}
	cp := *e
	cp.Seq = int64(len(s.entries) + 1)
	cp.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, &cp)
	s.tags[cp.Tag] = struct{}{}
	e.Seq = cp.Seq
	e.CreatedAt = cp.CreatedAt
	return cp.Seq, nil
}

// ForEach implements Store.
func (s *MemoryStore) ForEach(_ context.Context, f Filter, fn func(*Entry) error) error {
	s.mu.RLock()
	snapshot := make([]*Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.RUnlock()

	for _, e := range snapshot {
		if f.Study != nil && (e.Study == nil || *e.Study != *f.Study) {
			continue
		}
		if f.PayoutsOnly && !e.IsPayout() {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// ListTransactions implements Store.
func (s *MemoryStore) ListTransactions(ctx context.Context, study *string) ([]Transaction, error) {
	txs := []Transaction{}
	err := s.ForEach(ctx, Filter{Study: study}, func(e *Entry) error {
		txs = append(txs, Transaction{Value: e.Value, Study: e.Study, Tag: e.Tag, Coin: e.Coin})
		return nil
	})
	return txs, err
}

// ListPayouts implements Store.
func (s *MemoryStore) ListPayouts(ctx context.Context) ([]*Entry, error) {
	var payouts []*Entry
	err := s.ForEach(ctx, Filter{PayoutsOnly: true}, func(e *Entry) error {
		payouts = append(payouts, e)
		return nil
	})
	return payouts, err
}
