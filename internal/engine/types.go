package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ConfirmedParticipation is the artifact an organizer submits to request a
// reward: the participation id, the participant's spend-once tag, the blinded
// coin request, and the organizer's confirmation signature.
type ConfirmedParticipation struct {
	ID        string `json:"id"`
	Tag       string `json:"tag"`
	Study     string `json:"study"`
	Request   []byte `json:"request"`
	Signature []byte `json:"signature"`
	Value     int    `json:"value"`
}

// DeserializeParticipation parses the binary wire form of a confirmed
// participation.
func DeserializeParticipation(data []byte) (*ConfirmedParticipation, error) {
	var p ConfirmedParticipation
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse confirmed participation: %w", err)
	}
	if p.ID == "" || p.Tag == "" || p.Study == "" {
		return nil, fmt.Errorf("confirmed participation missing id, tag, or study")
	}
	return &p, nil
}

// Serialize returns the binary wire form.
func (p *ConfirmedParticipation) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// Resource is the study description an organizer signs when publishing.
type Resource struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Summary      string          `json:"summary"`
	Description  string          `json:"description"`
	Duration     string          `json:"duration"`
	Reward       int             `json:"reward"`
	WebBased     bool            `json:"webBased"`
	StudyURL     string          `json:"studyUrl"`
	Qualifier    json.RawMessage `json:"qualifier"`
	Disqualifier json.RawMessage `json:"disqualifier"`
	Constraints  json.RawMessage `json:"constraints"`
}

// SignedResource is a resource plus the owner's signature over it.
type SignedResource struct {
	Owner     string   `json:"owner"`
	Resource  Resource `json:"resource"`
	Signature []byte   `json:"signature"`
}

// DeserializeResource parses the binary wire form of a signed resource.
func DeserializeResource(data []byte) (*SignedResource, error) {
	var r SignedResource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse signed resource: %w", err)
	}
	if r.Owner == "" || r.Resource.ID == "" {
		return nil, fmt.Errorf("signed resource missing owner or id")
	}
	return &r, nil
}

// Serialize returns the binary wire form.
func (r *SignedResource) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// RewardEntry is the engine's output for a successful reward issuance: the
// participation it rewards, the blind-signed coin, and the ledger chain
// signature linking the entry to the current head.
type RewardEntry struct {
	Participation ConfirmedParticipation `json:"participation"`
	Coin          []byte                 `json:"coin"`
	Signature     []byte                 `json:"signature"`
}

// Serialize returns the client receipt form of the entry.
func (e *RewardEntry) Serialize() ([]byte, error) {
	return json.Marshal(e)
}

// PayoutResult is the engine's output for a verified payout request.
type PayoutResult struct {
	// Target is the caller-chosen payout destination descriptor.
	Target string
	// Recipient is the caller-chosen (pseudonymous) recipient handle.
	Recipient string
	// Value is the redeemed credit amount.
	Value int
	// Receipt is the opaque payout artifact returned to the caller and
	// stored as the entry's coin.
	Receipt []byte
	// Chain is the ledger chain signature for the payout entry.
	Chain []byte
}

// Record is the engine-facing projection of a persisted ledger entry, in the
// exact field layout the replay fold consumes. Participation is nil for
// payout entries.
type Record struct {
	Participation *string
	Tag           string
	Request       []byte
	Signature     []byte
	Value         int
	Coin          []byte
	Chain         []byte
}

// IsPayout reports whether the record is a payout entry.
func (r Record) IsPayout() bool { return r.Participation == nil }

// IssuerState is the immutable aggregate the ledger folds into: the chain
// head, the spent tag and nullifier sets, and the ordered records needed to
// serve the serialized ledger. It is only ever replaced, never mutated, and
// the replacement happens behind the ledger store's transaction boundary.
type IssuerState struct {
	head       []byte
	tags       map[string]struct{}
	nullifiers map[string]struct{}
	records    []Record
}

// Head returns the current chain head.
func (s *IssuerState) Head() []byte { return s.head }

// Len returns the number of folded records.
func (s *IssuerState) Len() int { return len(s.records) }

// SpentTag reports whether tag has been used by a folded record.
func (s *IssuerState) SpentTag(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// SpentNullifier reports whether a payout nullifier has been used.
func (s *IssuerState) SpentNullifier(n []byte) bool {
	_, ok := s.nullifiers[base64.StdEncoding.EncodeToString(n)]
	return ok
}

// Serialize returns the full ledger in its binary wire form, for clients
// recomputing balances locally.
func (s *IssuerState) Serialize() ([]byte, error) {
	type wireRecord struct {
		Participation *string `json:"participation"`
		Tag           string  `json:"tag"`
		Request       []byte  `json:"request"`
		Signature     []byte  `json:"signature"`
		Value         int     `json:"value"`
		Coin          []byte  `json:"coin"`
		Chain         []byte  `json:"chain"`
	}
	out := struct {
		Head    []byte       `json:"head"`
		Entries []wireRecord `json:"entries"`
	}{Head: s.head, Entries: make([]wireRecord, 0, len(s.records))}
	for _, r := range s.records {
		out.Entries = append(out.Entries, wireRecord(r))
	}
	return json.Marshal(out)
}

// next returns a copy of s with rec folded in and the head advanced.
func (s *IssuerState) next(rec Record, head []byte, nullifiers [][]byte) *IssuerState {
	n := &IssuerState{
		head:       head,
		tags:       make(map[string]struct{}, len(s.tags)+1),
		nullifiers: make(map[string]struct{}, len(s.nullifiers)+len(nullifiers)),
		records:    append(s.records[:len(s.records):len(s.records)], rec),
	}
	for t := range s.tags {
		n.tags[t] = struct{}{}
	}
	n.tags[rec.Tag] = struct{}{}
	for t := range s.nullifiers {
		n.nullifiers[t] = struct{}{}
	}
	for _, nf := range nullifiers {
		n.nullifiers[base64.StdEncoding.EncodeToString(nf)] = struct{}{}
	}
	return n
}
