package ledger

import (
	"context"
	"errors"
)

// ErrDuplicateTag is returned by Append and AppendConsuming when the entry's
// tag already exists in the ledger. It always originates from the storage
// layer's uniqueness constraint, never from a prior read, so two racing
// appends on the same tag cannot both succeed.
var ErrDuplicateTag = errors.New("ledger tag already exists")

// ErrStagedNotFound is returned by AppendConsuming when the referenced
// staged participation does not exist (or was already consumed).
var ErrStagedNotFound = errors.New("staged participation not found")

// Filter narrows a ledger scan.
type Filter struct {
	// Study restricts the scan to entries of one study.
	Study *string
	// PayoutsOnly restricts the scan to payout entries.
	PayoutsOnly bool
}

// Store is the durable, ordered, append-only ledger table. Both
// PostgresStore and MemoryStore implement it.
type Store interface {
	// Append inserts a payout or pre-built entry and returns its sequence
	// id. Fails with ErrDuplicateTag if the tag exists.
	Append(ctx context.Context, e *Entry) (int64, error)

	// AppendConsuming atomically consumes the staged participation row and
	// appends e, filling e.IV and e.Data from the consumed row. If the
	// append fails the consume is not observed, and vice versa.
	AppendConsuming(ctx context.Context, e *Entry, participationID string) (int64, error)

	// ForEach streams entries in ascending sequence order. fn returning an
	// error stops the scan and propagates the error.
	ForEach(ctx context.Context, f Filter, fn func(*Entry) error) error

	// ListTransactions returns the public projection of all entries,
	// optionally filtered by study.
	ListTransactions(ctx context.Context, study *string) ([]Transaction, error)

	// ListPayouts returns all payout entries in order.
	ListPayouts(ctx context.Context) ([]*Entry, error)
}
