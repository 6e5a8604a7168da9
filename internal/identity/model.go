// Package identity implements the registry of registered identities and the
// append-only log of issued credential signatures used for account recovery.
package identity

import (
	"fmt"
	"time"
)

// Role is the closed set of identity roles.
type Role string

const (
	// RoleParticipant is an anonymous credential holder. Participant rows
	// never carry a public key; their credentials live client-side.
	RoleParticipant Role = "participant"

	// RoleOrganizer owns studies and confirms participations. Organizer
	// rows carry the signing public key used to verify resource and reward
	// signatures.
	RoleOrganizer Role = "organizer"
)

// ParseRole validates a role string from the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleParticipant, RoleOrganizer:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity is one registered identity. Use NewParticipant or NewOrganizer so
// the public key is only ever present for the role it is valid for.
type Identity struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	PublicKey []byte    `json:"publicKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewParticipant creates a participant identity.
func NewParticipant(id string) *Identity {
	return &Identity{ID: id, Role: RoleParticipant}
}

// NewOrganizer creates an organizer identity with its signing public key.
func NewOrganizer(id string, publicKey []byte) *Identity {
	return &Identity{ID: id, Role: RoleOrganizer, PublicKey: publicKey}
}
