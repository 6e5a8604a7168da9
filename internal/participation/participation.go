// Package participation implements the staging area for encrypted, not-yet-
// rewarded participations. The server never sees plaintext content: a staged
// row is an opaque iv + ciphertext blob keyed by an unguessable id that acts
// as the capability to fetch it.
package participation

import (
	"context"
	"errors"
	"time"
)

// IVSize is the length of the AES-GCM nonce prefixed to submitted blobs.
const IVSize = 12

// ErrNotFound is returned when a staged participation does not exist or was
// already consumed.
var ErrNotFound = errors.New("participation not found")

// Staged is one staged participation.
type Staged struct {
	ID        string    `json:"id"`
	IV        []byte    `json:"iv"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence contract for the staging area. Both
// PostgresStore and MemoryStore implement it. Consumption during reward
// issuance does not go through this interface: it happens inside the ledger
// store's transaction so that consume and append are one atomic unit.
type Store interface {
	// Stage persists the blob under a fresh unguessable id and returns it.
	Stage(ctx context.Context, iv, data []byte) (string, error)

	// Fetch returns a staged participation without consuming it. Organizers
	// fetch for confirmation before the reward is issued.
	Fetch(ctx context.Context, id string) (*Staged, error)

	// Consume removes the row and returns its payload, ErrNotFound if it is
	// gone already.
	Consume(ctx context.Context, id string) (iv, data []byte, err error)

	// List returns all staged participations in staging order.
	List(ctx context.Context) ([]*Staged, error)
}
