package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an identity lookup finds no matching record.
var ErrNotFound = errors.New("identity not found")

// Store is the persistence contract for the identity registry. Both
// PostgresStore and MemoryStore implement it.
type Store interface {
	// Register inserts an identity. Idempotent at the row level: a second
	// registration for an existing id is accepted without modifying the
	// stored row, whatever it contains.
	Register(ctx context.Context, ident *Identity) error

	// Lookup returns the identity for id.
	Lookup(ctx context.Context, id string) (*Identity, error)

	// LookupPublicKey returns the public key stored for id. ErrNotFound if
	// the id is unknown or has no key (participants).
	LookupPublicKey(ctx context.Context, id string) ([]byte, error)

	// ListPublicKeys returns all organizer public keys, the approved-signer
	// set for resource and reward signature checks.
	ListPublicKeys(ctx context.Context) ([][]byte, error)

	// RecordIssuedCredential appends a credential signature to the issued
	// log. The log is append-only and only ever read back in full.
	RecordIssuedCredential(ctx context.Context, signature []byte) error

	// ListIssuedCredentials returns all issued signatures in issue order,
	// for participants recovering access by replaying the log.
	ListIssuedCredentials(ctx context.Context) ([][]byte, error)
}
