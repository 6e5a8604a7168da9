package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
)

// Replay reads all ledger entries in sequence order and folds them into a
// fresh issuer state. It runs once at startup, before the service accepts
// traffic; any entry failing to fold means ledger corruption or an
// engine/ledger version mismatch and is Fatal.
func Replay(ctx context.Context, store Store, eng engine.Engine) (*engine.IssuerState, error) {
	state := eng.NewState()
	err := store.ForEach(ctx, Filter{}, func(e *Entry) error {
		next, err := eng.Append(state, e.Record())
		if err != nil {
			return fmt.Errorf("fold entry %d: %w", e.Seq, err)
		}
		state = next
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Fatal, "ledger replay failed", err)
	}
	return state, nil
}

// StateHolder owns the current issuer state. The state value itself is
// immutable; Swap is the only way to advance it, and it serializes the
// engine call, the storage transaction, and the replacement into a single
// critical section so the in-memory chain head always matches the persisted
// ledger tail.
type StateHolder struct {
	mu    sync.RWMutex
	state *engine.IssuerState
}

// NewStateHolder wraps the replayed startup state.
func NewStateHolder(state *engine.IssuerState) *StateHolder {
	return &StateHolder{state: state}
}

// Current returns the present issuer state.
func (h *StateHolder) Current() *engine.IssuerState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Swap runs fn with the current state and installs its result. If fn fails
// the state is left untouched — fn must make sure its side effects
// (storage writes) failed or rolled back too.
func (h *StateHolder) Swap(fn func(*engine.IssuerState) (*engine.IssuerState, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := fn(h.state)
	if err != nil {
		return err
	}
	h.state = next
	return nil
}
