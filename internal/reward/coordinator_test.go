package reward

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/internal/identity"
	"github.com/prepams/prepams/internal/ledger"
	"github.com/prepams/prepams/internal/participation"
	"github.com/prepams/prepams/internal/study"
	"go.uber.org/zap"
)

type fixture struct {
	eng     *engine.Local
	key     ed25519.PrivateKey
	staging *participation.MemoryStore
	store   *ledger.MemoryStore
	holder  *ledger.StateHolder
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, err := engine.NewLocal(bytes.Repeat([]byte{0x42}, engine.SecretSize))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{0x07}, ed25519.SeedSize))
	pub := key.Public().(ed25519.PublicKey)

	owners := identity.NewMemoryStore()
	ctx := context.Background()
	if err := owners.Register(ctx, identity.NewOrganizer("org@example.org", pub)); err != nil {
		t.Fatalf("register organizer: %v", err)
	}

	studies := study.NewMemoryStore(owners)
	if err := studies.Create(ctx, &study.Study{ID: "study-1", Name: "S", Owner: "org@example.org", Reward: 5}); err != nil {
		t.Fatalf("create study: %v", err)
	}

	staging := participation.NewMemoryStore()
	store := ledger.NewMemoryStore(staging)
	holder := ledger.NewStateHolder(eng.NewState())

	return &fixture{
		eng:     eng,
		key:     key,
		staging: staging,
		store:   store,
		holder:  holder,
		coord:   New(store, studies, eng, holder, zap.NewNop()),
	}
}

// stageAndConfirm stages a blob and returns the serialized confirmed
// participation referencing it.
func (f *fixture) stageAndConfirm(t *testing.T, tag string, request []byte, value int) []byte {
	t.Helper()
	id, err := f.staging.Stage(context.Background(), make([]byte, participation.IVSize), []byte("ciphertext"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	p := engine.ConfirmParticipation(f.key, id, tag, "study-1", request, value)
	raw, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return raw
}

func TestIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt, err := f.coord.Issue(ctx, f.stageAndConfirm(t, "tag-1", []byte("req"), 5))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var entry engine.RewardEntry
	if err := json.Unmarshal(receipt, &entry); err != nil {
		t.Fatalf("unmarshal receipt: %v", err)
	}
	if len(entry.Coin) == 0 || len(entry.Signature) == 0 {
		t.Errorf("receipt incomplete: %+v", entry)
	}

	if f.holder.Current().Len() != 1 {
		t.Errorf("state len = %d, want 1", f.holder.Current().Len())
	}
	if !f.holder.Current().SpentTag("tag-1") {
		t.Error("tag not spent after issuance")
	}

	// The staged row was consumed and the payload moved into the ledger.
	staged, _ := f.staging.List(ctx)
	if len(staged) != 0 {
		t.Errorf("%d staged rows remain, want 0", len(staged))
	}
	txs, err := f.store.ListTransactions(ctx, nil)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Tag != "tag-1" || txs[0].Value != 5 {
		t.Errorf("transactions = %+v", txs)
	}
}

func TestIssueSameTagTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.coord.Issue(ctx, f.stageAndConfirm(t, "tag-1", []byte("req-a"), 5)); err != nil {
		t.Fatalf("first Issue: %v", err)
	}

	// New staged row, same spend-once tag.
	_, err := f.coord.Issue(ctx, f.stageAndConfirm(t, "tag-1", []byte("req-b"), 5))
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("kind = %v, want Conflict", apperr.KindOf(err))
	}
	if apperr.Message(err) != "reward for this participation already issued" {
		t.Errorf("message = %q", apperr.Message(err))
	}

	// The failed attempt must not have advanced the state.
	if f.holder.Current().Len() != 1 {
		t.Errorf("state len = %d, want 1", f.holder.Current().Len())
	}
}

func TestIssueUnknownStudy(t *testing.T) {
	f := newFixture(t)

	p := engine.ConfirmParticipation(f.key, "p-1", "tag-1", "no-such-study", []byte("req"), 5)
	raw, _ := p.Serialize()
	_, err := f.coord.Issue(context.Background(), raw)
	if apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
	if apperr.Message(err) != "study does not exist" {
		t.Errorf("message = %q", apperr.Message(err))
	}
}

func TestIssueMissingParticipation(t *testing.T) {
	f := newFixture(t)

	// Valid confirmation, but nothing staged under this id.
	p := engine.ConfirmParticipation(f.key, "ghost", "tag-1", "study-1", []byte("req"), 5)
	raw, _ := p.Serialize()
	_, err := f.coord.Issue(context.Background(), raw)
	if apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
	if apperr.Message(err) != "participation does not exist" {
		t.Errorf("message = %q", apperr.Message(err))
	}
	if f.holder.Current().Len() != 0 {
		t.Error("state advanced despite missing participation")
	}
}

func TestIssueWrongValue(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Issue(context.Background(), f.stageAndConfirm(t, "tag-1", []byte("req"), 7))
	if apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
	if apperr.Message(err) != "reward verification failed" {
		t.Errorf("message = %q", apperr.Message(err))
	}
}

func TestIssueMalformed(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Issue(context.Background(), []byte("not json"))
	if apperr.KindOf(err) != apperr.BadRequest {
		t.Fatalf("kind = %v, want BadRequest", apperr.KindOf(err))
	}
}

func TestConcurrentIssuanceSameTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	payloads := make([][]byte, workers)
	for i := range payloads {
		payloads[i] = f.stageAndConfirm(t, "shared-tag", []byte(fmt.Sprintf("req-%d", i)), 5)
	}

	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.coord.Issue(ctx, payloads[i])
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.Conflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d issuances succeeded, want exactly 1", succeeded)
	}
	if conflicts != workers-1 {
		t.Errorf("%d conflicts, want %d", conflicts, workers-1)
	}
	if f.holder.Current().Len() != 1 {
		t.Errorf("state len = %d, want 1", f.holder.Current().Len())
	}
}
