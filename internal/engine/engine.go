// Package engine defines the capability surface of the credential engine:
// the collaborator that performs all anonymous-credential cryptography
// (credential issuance, resource and reward signatures, payout proofs,
// nullifier handling). The coordinators in internal/reward and
// internal/payout only ever talk to this interface; ledger bookkeeping and
// double-spend detection at the storage layer stay out of it.
package engine

import "errors"

// ErrVerification is wrapped by all engine errors caused by failed
// cryptographic verification, so callers can distinguish a rejected artifact
// from an engine malfunction.
var ErrVerification = errors.New("verification failed")

// Engine is the credential engine capability surface.
type Engine interface {
	// PublicKey is the issuer public key participants bind credential
	// requests to.
	PublicKey() []byte

	// VerificationKey is the credit (coin) verification key.
	VerificationKey() []byte

	// LedgerVerificationKey verifies ledger chain signatures. Clients use it
	// to validate the serialized ledger when recomputing balances.
	LedgerVerificationKey() []byte

	// IssueCredential signs a participant's blinded credential request.
	IssueCredential(request []byte) ([]byte, error)

	// CheckResourceSignature reports whether res carries a valid owner
	// signature under publicKey.
	CheckResourceSignature(res *SignedResource, publicKey []byte) (bool, error)

	// IssueReward verifies a confirmed participation against the organizer
	// key and the study's reward amount, and produces the reward entry to be
	// appended. It does not consult the spent-tag set: tag uniqueness is the
	// ledger store's job.
	IssueReward(state *IssuerState, p *ConfirmedParticipation, organizerKey []byte, reward int) (*RewardEntry, error)

	// CheckPayoutRequest verifies a payout proof (value conservation,
	// nullifier non-reuse, well-formedness) against the current issuer state
	// and produces the payout entry and receipt.
	CheckPayoutRequest(state *IssuerState, proof []byte) (*PayoutResult, error)

	// IssueNulls signs a batch of zero-value blinded coins used as payout
	// padding.
	IssueNulls(request []byte) ([]byte, error)

	// NewState returns the empty issuer state that ledger replay folds
	// entries into.
	NewState() *IssuerState

	// Append folds one ledger record into state, verifying its chain
	// signature, and returns the successor state. The input state is never
	// modified, so a failed append leaves the caller's state intact.
	Append(state *IssuerState, rec Record) (*IssuerState, error)
}
