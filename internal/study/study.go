// Package study implements the registry of published studies. Studies are
// signed resources: the owner's signature is checked by the credential
// engine against the organizer key on record before a study is accepted.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a study lookup finds no matching record.
var ErrNotFound = errors.New("study not found")

// Study is one published study, including the full qualification
// relationship (qualifier, disqualifier, and attribute constraints).
type Study struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Owner        string          `json:"owner"`
	Abstract     string          `json:"abstract"`
	Description  string          `json:"description"`
	Duration     string          `json:"duration"`
	Reward       int             `json:"reward"`
	Qualifier    json.RawMessage `json:"qualifier"`
	Disqualifier json.RawMessage `json:"disqualifier"`
	Constraints  json.RawMessage `json:"constraints"`
	WebBased     bool            `json:"webBased"`
	StudyURL     *string         `json:"studyURL"`
	Signature    []byte          `json:"signature"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// RewardInfo is what the reward issuance coordinator needs from a study:
// the reward amount and the owner's signing public key.
type RewardInfo struct {
	Reward   int
	OwnerKey []byte
}

// Store is the persistence contract for the study registry. Both
// PostgresStore and MemoryStore implement it.
type Store interface {
	// Create inserts a study.
	Create(ctx context.Context, st *Study) error

	// Get returns the study with the given id.
	Get(ctx context.Context, id string) (*Study, error)

	// List returns studies, optionally restricted to one owner.
	List(ctx context.Context, owner *string) ([]*Study, error)

	// RewardInfo resolves the reward amount and the owner public key for a
	// study. ErrNotFound if the study or the owner key is missing.
	RewardInfo(ctx context.Context, id string) (*RewardInfo, error)

	// ListWebBased returns all web-based studies with a study URL, for the
	// reachability prober.
	ListWebBased(ctx context.Context) ([]*Study, error)
}
