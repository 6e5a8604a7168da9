package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prepams/prepams/internal/participation"
)

func strptr(s string) *string { return &s }

func TestAppendAndForEachRoundTrip(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	entries := []*Entry{
		{Participation: strptr("p-1"), Tag: "tag-1", Study: strptr("s-1"), Value: 5, Coin: []byte("c1"), Chain: []byte("x1")},
		{Participation: strptr("p-2"), Tag: "tag-2", Study: strptr("s-2"), Value: 7, Coin: []byte("c2"), Chain: []byte("x2")},
		{Tag: "payout-1", Value: 5, Coin: []byte("c3"), Chain: []byte("x3")},
	}
	for i, e := range entries {
		seq, err := store.Append(ctx, e)
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if seq != int64(i+1) {
			t.Errorf("seq = %d, want %d", seq, i+1)
		}
	}

	var got []*Entry
	if err := store.ForEach(ctx, Filter{}, func(e *Entry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	for i, e := range got {
		if e.Seq != int64(i+1) {
			t.Errorf("entry %d out of order: seq %d", i, e.Seq)
		}
	}
	if got[0].Tag != "tag-1" || got[0].Value != 5 || string(got[0].Coin) != "c1" {
		t.Errorf("entry fields not preserved: %+v", got[0])
	}
	if !got[2].IsPayout() {
		t.Error("entry without participation should be a payout")
	}
}

func TestAppendDuplicateTag(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	if _, err := store.Append(ctx, &Entry{Tag: "A", Coin: []byte("c"), Chain: []byte("x")}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	_, err := store.Append(ctx, &Entry{Tag: "A", Coin: []byte("c"), Chain: []byte("x")})
	if !errors.Is(err, ErrDuplicateTag) {
		t.Fatalf("second append err = %v, want ErrDuplicateTag", err)
	}
}

func TestConcurrentSameTagAppend(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	const workers = 8
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.Append(ctx, &Entry{Tag: "A", Coin: []byte("c"), Chain: []byte("x")})
		}(i)
	}
	wg.Wait()

	succeeded, duplicates := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrDuplicateTag):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d appends succeeded, want exactly 1", succeeded)
	}
	if duplicates != workers-1 {
		t.Errorf("%d duplicates, want %d", duplicates, workers-1)
	}
}

func TestAppendConsuming(t *testing.T) {
	staging := participation.NewMemoryStore()
	store := NewMemoryStore(staging)
	ctx := context.Background()

	id, err := staging.Stage(ctx, []byte("iv-bytes-12!"), []byte("ciphertext"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	e := &Entry{Participation: &id, Tag: "tag-1", Value: 5, Coin: []byte("c"), Chain: []byte("x")}
	if _, err := store.AppendConsuming(ctx, e, id); err != nil {
		t.Fatalf("AppendConsuming: %v", err)
	}
	if string(e.IV) != "iv-bytes-12!" || string(e.Data) != "ciphertext" {
		t.Errorf("staged payload not copied into entry: iv=%q data=%q", e.IV, e.Data)
	}

	// The staged row is gone.
	if _, err := staging.Fetch(ctx, id); !errors.Is(err, participation.ErrNotFound) {
		t.Errorf("Fetch after consume err = %v, want ErrNotFound", err)
	}

	// Consuming again: participation no longer exists.
	if _, err := store.AppendConsuming(ctx, &Entry{Tag: "tag-2", Coin: []byte("c"), Chain: []byte("x")}, id); !errors.Is(err, ErrStagedNotFound) {
		t.Errorf("err = %v, want ErrStagedNotFound", err)
	}
}

func TestAppendConsumingDuplicateTagKeepsStagedRow(t *testing.T) {
	staging := participation.NewMemoryStore()
	store := NewMemoryStore(staging)
	ctx := context.Background()

	if _, err := store.Append(ctx, &Entry{Tag: "A", Coin: []byte("c"), Chain: []byte("x")}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	id, err := staging.Stage(ctx, []byte("iv"), []byte("data"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	_, err = store.AppendConsuming(ctx, &Entry{Participation: &id, Tag: "A", Coin: []byte("c"), Chain: []byte("x")}, id)
	if !errors.Is(err, ErrDuplicateTag) {
		t.Fatalf("err = %v, want ErrDuplicateTag", err)
	}

	// The duplicate must not have consumed the staged blob.
	if _, err := staging.Fetch(ctx, id); err != nil {
		t.Errorf("staged row lost on duplicate tag: %v", err)
	}
}

func TestListTransactions(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	seed := []*Entry{
		{Participation: strptr("p-1"), Tag: "t1", Study: strptr("s-1"), Value: 5, Coin: []byte("c"), Chain: []byte("x")},
		{Participation: strptr("p-2"), Tag: "t2", Study: strptr("s-2"), Value: 7, Coin: []byte("c"), Chain: []byte("x")},
		{Tag: "payout", Value: 5, Coin: []byte("c"), Chain: []byte("x")},
	}
	for _, e := range seed {
		if _, err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := store.ListTransactions(ctx, nil)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all transactions = %d, want 3", len(all))
	}

	one, err := store.ListTransactions(ctx, strptr("s-1"))
	if err != nil {
		t.Fatalf("ListTransactions(s-1): %v", err)
	}
	if len(one) != 1 || one[0].Tag != "t1" {
		t.Errorf("filtered transactions = %+v", one)
	}

	payouts, err := store.ListPayouts(ctx)
	if err != nil {
		t.Fatalf("ListPayouts: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Tag != "payout" {
		t.Errorf("payouts = %+v", payouts)
	}
}
