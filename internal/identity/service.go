package identity

import (
	"context"
	"fmt"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
	"go.uber.org/zap"
)

// Service contains the signup and signin logic of the identity registry.
type Service struct {
	store  Store
	eng    engine.Engine
	logger *zap.Logger
}

// NewService creates a new identity Service.
func NewService(store Store, eng engine.Engine, logger *zap.Logger) *Service {
	return &Service{store: store, eng: eng, logger: logger}
}

// SignupParticipant issues a credential signature for the participant's
// blinded request, records the identity and the signature, and returns the
// signature blob. Re-registration for an existing id is accepted: the row is
// untouched and a fresh credential is issued and logged, which is what lets
// a participant who lost local state start over under the same handle.
func (s *Service) SignupParticipant(ctx context.Context, id string, request []byte) ([]byte, error) {
	if id == "" {
		return nil, apperr.New(apperr.BadRequest, "id is required")
	}

	signature, err := s.eng.IssueCredential(request)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "credential request rejected", err)
	}

	if err := s.store.Register(ctx, NewParticipant(id)); err != nil {
		return nil, fmt.Errorf("register participant: %w", err)
	}
	if err := s.store.RecordIssuedCredential(ctx, signature); err != nil {
		return nil, fmt.Errorf("record issued credential: %w", err)
	}

	s.logger.Info("participant registered", zap.String("id", id))
	return signature, nil
}

// SignupOrganizer records an organizer identity with its signing public key.
// Re-registration is a no-op; the originally stored key stays authoritative.
func (s *Service) SignupOrganizer(ctx context.Context, id string, publicKey []byte) error {
	if id == "" {
		return apperr.New(apperr.BadRequest, "id is required")
	}
	if len(publicKey) == 0 {
		return apperr.New(apperr.BadRequest, "organizer public key is required")
	}

	if err := s.store.Register(ctx, NewOrganizer(id, publicKey)); err != nil {
		return fmt.Errorf("register organizer: %w", err)
	}

	s.logger.Info("organizer registered", zap.String("id", id))
	return nil
}

// IssuedLog returns all issued credential signatures in issue order, for
// participant account recovery.
func (s *Service) IssuedLog(ctx context.Context) ([][]byte, error) {
	return s.store.ListIssuedCredentials(ctx)
}

// OrganizerKeys returns the approved-signer public key set.
func (s *Service) OrganizerKeys(ctx context.Context) ([][]byte, error) {
	return s.store.ListPublicKeys(ctx)
}
