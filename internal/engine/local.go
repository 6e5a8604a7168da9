package engine

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// MaxInputs is the fixed payout proof input count; shorter spend sets are
// padded with zero-value null coins to this length.
const MaxInputs = 10

// SecretSize is the size of the issuer secret seed in bytes.
const SecretSize = 32

// Local is a self-contained credential engine. Resource, reward, and ledger
// chain signatures use ed25519, matching the production scheme; coins and
// chain heads are blake2b derivations. The zero-knowledge payout proof is
// represented structurally (claimed input values plus nullifiers) — the
// checks on padding, key binding, nullifier reuse, and value conservation
// are the same ones the production verifier enforces.
type Local struct {
	credentialKey ed25519.PrivateKey
	ledgerKey     ed25519.PrivateKey
	creditKey     []byte
	creditVK      []byte
}

// GenerateSecret returns a fresh issuer secret seed.
func GenerateSecret() ([]byte, error) {
	seed := make([]byte, SecretSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate issuer secret: %w", err)
	}
	return seed, nil
}

// NewLocal derives the engine's key material from a 32-byte secret seed.
// The same seed always yields the same keys, so ledger replay across process
// restarts reconstructs an identical issuer.
func NewLocal(secret []byte) (*Local, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("issuer secret must be %d bytes, got %d", SecretSize, len(secret))
	}
	creditKey := derive(secret, "credit")
	return &Local{
		credentialKey: ed25519.NewKeyFromSeed(derive(secret, "credential")),
		ledgerKey:     ed25519.NewKeyFromSeed(derive(secret, "ledger")),
		creditKey:     creditKey,
		creditVK:      derive(creditKey, "vk"),
	}, nil
}

// derive computes a 32-byte keyed derivation of material for the given label.
func derive(material []byte, label string) []byte {
	h, _ := blake2b.New256([]byte(label))
	h.Write(material)
	return h.Sum(nil)
}

// PublicKey implements Engine.
func (l *Local) PublicKey() []byte {
	return l.credentialKey.Public().(ed25519.PublicKey)
}

// VerificationKey implements Engine.
func (l *Local) VerificationKey() []byte { return l.creditVK }

// LedgerVerificationKey implements Engine.
func (l *Local) LedgerVerificationKey() []byte {
	return l.ledgerKey.Public().(ed25519.PublicKey)
}

// credentialSignature is the issued-credential artifact. RequestHash lets a
// participant recover their account by replaying the issued-signature log
// and matching the hash of their locally re-derived request.
type credentialSignature struct {
	RequestHash []byte `json:"requestHash"`
	Signature   []byte `json:"signature"`
}

// IssueCredential implements Engine.
func (l *Local) IssueCredential(request []byte) ([]byte, error) {
	if len(request) == 0 {
		return nil, fmt.Errorf("%w: empty credential request", ErrVerification)
	}
	sig := credentialSignature{
		RequestHash: derive(request, "request"),
		Signature:   ed25519.Sign(l.credentialKey, append([]byte("credential:"), request...)),
	}
	return json.Marshal(sig)
}

// MatchCredential reports whether an issued credential signature belongs to
// the given request. Used by account recovery to find the participant's own
// signature in the issued log.
func MatchCredential(issued, request []byte) bool {
	var sig credentialSignature
	if err := json.Unmarshal(issued, &sig); err != nil {
		return false
	}
	return bytes.Equal(sig.RequestHash, derive(request, "request"))
}

// CheckResourceSignature implements Engine.
func (l *Local) CheckResourceSignature(res *SignedResource, publicKey []byte) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: malformed owner public key", ErrVerification)
	}
	blob, err := json.Marshal(res.Resource)
	if err != nil {
		return false, fmt.Errorf("marshal resource: %w", err)
	}
	return ed25519.Verify(publicKey, append([]byte("resource:"), blob...), res.Signature), nil
}

// SignResource signs a resource with an organizer key. Organizer-side
// operation, used by the demo bootstrap and tests.
func SignResource(organizerKey ed25519.PrivateKey, owner string, res Resource) (*SignedResource, error) {
	blob, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return &SignedResource{
		Owner:     owner,
		Resource:  res,
		Signature: ed25519.Sign(organizerKey, append([]byte("resource:"), blob...)),
	}, nil
}

// ConfirmParticipation produces an organizer-confirmed participation.
// Organizer-side operation, used by the demo bootstrap and tests.
func ConfirmParticipation(organizerKey ed25519.PrivateKey, id, tag, study string, request []byte, value int) *ConfirmedParticipation {
	return &ConfirmedParticipation{
		ID:        id,
		Tag:       tag,
		Study:     study,
		Request:   request,
		Signature: ed25519.Sign(organizerKey, participationMessage(id, request)),
		Value:     value,
	}
}

func participationMessage(id string, request []byte) []byte {
	return append([]byte(id), request...)
}

// IssueReward implements Engine.
func (l *Local) IssueReward(state *IssuerState, p *ConfirmedParticipation, organizerKey []byte, reward int) (*RewardEntry, error) {
	if len(organizerKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed organizer public key", ErrVerification)
	}
	if !ed25519.Verify(organizerKey, participationMessage(p.ID, p.Request), p.Signature) {
		return nil, fmt.Errorf("%w: reward signature invalid", ErrVerification)
	}
	if p.Value != reward {
		return nil, fmt.Errorf("%w: reward amount does not match study", ErrVerification)
	}

	h, _ := blake2b.New256(l.creditKey)
	h.Write([]byte("coin:"))
	h.Write(p.Request)
	coin := h.Sum(nil)

	return &RewardEntry{
		Participation: *p,
		Coin:          coin,
		Signature:     ed25519.Sign(l.ledgerKey, entryMessage(state.Head(), p.Tag, coin, p.Value)),
	}, nil
}

// entryMessage is the chain signature input: the previous head plus the
// entry's spend-once key, coin, and value. Every field is reproducible from
// the persisted row, which is what makes the replay fold deterministic.
func entryMessage(head []byte, tag string, coin []byte, value int) []byte {
	var buf bytes.Buffer
	buf.WriteString("entry:")
	buf.Write(head)
	buf.WriteByte(0)
	buf.WriteString(tag)
	buf.WriteByte(0)
	buf.Write(coin)
	_ = binary.Write(&buf, binary.LittleEndian, int64(value))
	return buf.Bytes()
}

// payoutInput is one spent coin in a payout proof.
type payoutInput struct {
	Nullifier []byte `json:"nullifier"`
	Value     int    `json:"value"`
}

// payoutProof is the wire form of a payout request.
type payoutProof struct {
	Target    string        `json:"target"`
	Recipient string        `json:"recipient"`
	Value     int           `json:"value"`
	Inputs    []payoutInput `json:"inputs"`
	CVK       []byte        `json:"cvk"`
}

// payoutReceipt is the opaque payout artifact stored as the entry's coin and
// handed back to the caller. The nullifiers travel inside it so that replay
// reconstructs the spent-nullifier set from ledger rows alone.
type payoutReceipt struct {
	Value      int      `json:"value"`
	Nullifiers [][]byte `json:"nullifiers"`
	Signature  []byte   `json:"signature"`
}

// PayoutTag renders the caller-visible descriptor stored as a payout entry's
// tag. Its uniqueness in the ledger is what rejects replayed payout proofs.
func PayoutTag(target, recipient string) string {
	b, _ := json.Marshal(struct {
		Target    string `json:"target"`
		Recipient string `json:"recipient"`
	}{target, recipient})
	return string(b)
}

// CheckPayoutRequest implements Engine.
func (l *Local) CheckPayoutRequest(state *IssuerState, proof []byte) (*PayoutResult, error) {
	var p payoutProof
	if err := json.Unmarshal(proof, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed payout proof", ErrVerification)
	}
	if len(p.Inputs) != MaxInputs {
		return nil, fmt.Errorf("%w: invalid padding", ErrVerification)
	}
	if !bytes.Equal(p.CVK, l.creditVK) {
		return nil, fmt.Errorf("%w: invalid public key", ErrVerification)
	}
	if p.Value <= 0 {
		return nil, fmt.Errorf("%w: payout value must be positive", ErrVerification)
	}

	total := 0
	seen := make(map[string]struct{}, len(p.Inputs))
	nullifiers := make([][]byte, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		if len(in.Nullifier) == 0 || in.Value < 0 {
			return nil, fmt.Errorf("%w: malformed payout input", ErrVerification)
		}
		key := string(in.Nullifier)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate nullifier in proof", ErrVerification)
		}
		seen[key] = struct{}{}
		if state.SpentNullifier(in.Nullifier) {
			return nil, fmt.Errorf("%w: nullifier already spent", ErrVerification)
		}
		total += in.Value
		nullifiers = append(nullifiers, in.Nullifier)
	}
	if total < p.Value {
		return nil, fmt.Errorf("%w: insufficient balance", ErrVerification)
	}

	inputsBlob, err := json.Marshal(p.Inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal payout inputs: %w", err)
	}
	receipt, err := json.Marshal(payoutReceipt{
		Value:      p.Value,
		Nullifiers: nullifiers,
		Signature:  ed25519.Sign(l.ledgerKey, append([]byte("payout:"), inputsBlob...)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payout receipt: %w", err)
	}

	tag := PayoutTag(p.Target, p.Recipient)
	return &PayoutResult{
		Target:    p.Target,
		Recipient: p.Recipient,
		Value:     p.Value,
		Receipt:   receipt,
		Chain:     ed25519.Sign(l.ledgerKey, entryMessage(state.Head(), tag, receipt, p.Value)),
	}, nil
}

// nullRequest is one blinded zero-value coin request.
type nullRequest struct {
	M []int64 `json:"m"`
}

// IssueNulls implements Engine.
func (l *Local) IssueNulls(request []byte) ([]byte, error) {
	var reqs []nullRequest
	if err := json.Unmarshal(request, &reqs); err != nil {
		return nil, fmt.Errorf("%w: malformed null coin request", ErrVerification)
	}

	coins := make([][]byte, 0, len(reqs))
	for _, r := range reqs {
		if len(r.M) != 1 {
			return nil, fmt.Errorf("%w: request contains invalid amount of attributes", ErrVerification)
		}
		if r.M[0] != 0 {
			return nil, fmt.Errorf("%w: value of request is not zero", ErrVerification)
		}
		blob, _ := json.Marshal(r)
		h, _ := blake2b.New256(l.creditKey)
		h.Write([]byte("null:"))
		h.Write(blob)
		coins = append(coins, h.Sum(nil))
	}
	return json.Marshal(coins)
}

// NewState implements Engine. The initial head is a key-bound constant so
// chains from different issuers never validate against each other.
func (l *Local) NewState() *IssuerState {
	return &IssuerState{
		head:       derive(l.LedgerVerificationKey(), "genesis"),
		tags:       map[string]struct{}{},
		nullifiers: map[string]struct{}{},
	}
}

// Append implements Engine.
func (l *Local) Append(state *IssuerState, rec Record) (*IssuerState, error) {
	vk := l.LedgerVerificationKey()
	if !ed25519.Verify(vk, entryMessage(state.Head(), rec.Tag, rec.Coin, rec.Value), rec.Chain) {
		return nil, fmt.Errorf("%w: chain signature invalid", ErrVerification)
	}
	if state.SpentTag(rec.Tag) {
		return nil, fmt.Errorf("%w: duplicate tag %q", ErrVerification, rec.Tag)
	}

	var nullifiers [][]byte
	if rec.IsPayout() {
		var receipt payoutReceipt
		if err := json.Unmarshal(rec.Coin, &receipt); err != nil {
			return nil, fmt.Errorf("%w: malformed payout receipt", ErrVerification)
		}
		for _, n := range receipt.Nullifiers {
			if state.SpentNullifier(n) {
				return nil, fmt.Errorf("%w: nullifier already spent", ErrVerification)
			}
			nullifiers = append(nullifiers, n)
		}
	}

	h, _ := blake2b.New256(nil)
	h.Write(state.Head())
	h.Write(rec.Chain)
	return state.next(rec, h.Sum(nil), nullifiers), nil
}
