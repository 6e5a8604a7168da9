package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"testing"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
)

func newTestEngine(t *testing.T) *engine.Local {
	t.Helper()
	eng, err := engine.NewLocal(bytes.Repeat([]byte{0x42}, engine.SecretSize))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return eng
}

// seedLedger appends n engine-valid reward entries and returns the final state.
func seedLedger(t *testing.T, store Store, eng *engine.Local, n int) *engine.IssuerState {
	t.Helper()
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x07}, ed25519.SeedSize))
	pub := key.Public().(ed25519.PublicKey)

	state := eng.NewState()
	for i := 0; i < n; i++ {
		p := engine.ConfirmParticipation(key, fmt.Sprintf("p-%d", i), fmt.Sprintf("tag-%d", i), "study-1", []byte{byte(i)}, 5)
		re, err := eng.IssueReward(state, p, pub, 5)
		if err != nil {
			t.Fatalf("IssueReward %d: %v", i, err)
		}
		e := &Entry{
			Participation: &p.ID,
			Tag:           p.Tag,
			Study:         &p.Study,
			Request:       p.Request,
			Signature:     p.Signature,
			Value:         p.Value,
			Coin:          re.Coin,
			Chain:         re.Signature,
		}
		if _, err := store.Append(context.Background(), e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		state, err = eng.Append(state, e.Record())
		if err != nil {
			t.Fatalf("fold %d: %v", i, err)
		}
	}
	return state
}

func TestReplayRebuildsState(t *testing.T) {
	eng := newTestEngine(t)
	store := NewMemoryStore(nil)
	live := seedLedger(t, store, eng, 4)

	replayed, err := Replay(context.Background(), store, eng)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !bytes.Equal(replayed.Head(), live.Head()) {
		t.Errorf("replayed head %x != live head %x", replayed.Head(), live.Head())
	}
	if replayed.Len() != live.Len() {
		t.Errorf("replayed len %d != live len %d", replayed.Len(), live.Len())
	}

	// Replaying again yields the same state: the fold is pure.
	again, err := Replay(context.Background(), store, eng)
	if err != nil {
		t.Fatalf("second Replay: %v", err)
	}
	if !bytes.Equal(again.Head(), replayed.Head()) {
		t.Error("replay is not idempotent")
	}
}

func TestReplayFailsOnCorruptEntry(t *testing.T) {
	eng := newTestEngine(t)
	store := NewMemoryStore(nil)
	seedLedger(t, store, eng, 2)

	// An entry whose chain signature cannot verify against the fold.
	if _, err := store.Append(context.Background(), &Entry{
		Tag:   "forged",
		Value: 99,
		Coin:  []byte("coin"),
		Chain: bytes.Repeat([]byte{1}, ed25519.SignatureSize),
	}); err != nil {
		t.Fatalf("Append forged: %v", err)
	}

	_, err := Replay(context.Background(), store, eng)
	if err == nil {
		t.Fatal("expected replay to fail on forged entry")
	}
	if apperr.KindOf(err) != apperr.Fatal {
		t.Errorf("kind = %v, want Fatal", apperr.KindOf(err))
	}
}

func TestStateHolderSwap(t *testing.T) {
	eng := newTestEngine(t)
	initial := eng.NewState()
	holder := NewStateHolder(initial)

	boom := errors.New("boom")
	err := holder.Swap(func(cur *engine.IssuerState) (*engine.IssuerState, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Swap err = %v, want boom", err)
	}
	if holder.Current() != initial {
		t.Error("failed swap must leave state untouched")
	}

	store := NewMemoryStore(nil)
	next := seedLedger(t, store, eng, 1)
	if err := holder.Swap(func(cur *engine.IssuerState) (*engine.IssuerState, error) {
		return next, nil
	}); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if holder.Current() != next {
		t.Error("successful swap did not install the new state")
	}
}
