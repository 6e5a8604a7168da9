// Package ledger implements the append-only record of issued rewards and
// payouts. Entries are totally ordered by sequence id and never mutated or
// deleted; the uniqueness constraint on the tag column is the sole guard
// against double issuance and payout replay.
package ledger

import (
	"time"

	"github.com/prepams/prepams/internal/engine"
)

// Entry is one immutable ledger row. Reward entries carry the participation
// reference plus the encrypted participation payload moved over from the
// staging area; payout entries leave those fields nil and are identified by
// a nil Participation.
type Entry struct {
	Seq           int64     `json:"seq"`
	Participation *string   `json:"participation"`
	Tag           string    `json:"tag"`
	Study         *string   `json:"study"`
	IV            []byte    `json:"iv"`
	Data          []byte    `json:"data"`
	Request       []byte    `json:"request"`
	Signature     []byte    `json:"signature"`
	Value         int       `json:"value"`
	Coin          []byte    `json:"coin"`
	Chain         []byte    `json:"chain"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsPayout reports whether the entry records a payout.
func (e *Entry) IsPayout() bool { return e.Participation == nil }

// Record projects the entry into the engine's replay-fold input.
func (e *Entry) Record() engine.Record {
	return engine.Record{
		Participation: e.Participation,
		Tag:           e.Tag,
		Request:       e.Request,
		Signature:     e.Signature,
		Value:         e.Value,
		Coin:          e.Coin,
		Chain:         e.Chain,
	}
}

// Transaction is the public projection of a ledger entry served by the
// rewards listing: enough for a client to locate its own entries without
// exposing the encrypted payloads.
type Transaction struct {
	Value int     `json:"value"`
	Study *string `json:"study"`
	Tag   string  `json:"tag"`
	Coin  []byte  `json:"coin"`
}
