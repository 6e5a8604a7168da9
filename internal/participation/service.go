package participation

import (
	"context"
	"fmt"

	"github.com/prepams/prepams/internal/apperr"
	"go.uber.org/zap"
)

// Service wraps the staging store with the submission-splitting and
// capability-URL logic of the staging API.
type Service struct {
	store  Store
	appURL string
	logger *zap.Logger
}

// NewService creates a new staging Service. appURL is the public base URL
// embedded in capability links handed back to participants.
func NewService(store Store, appURL string, logger *zap.Logger) *Service {
	return &Service{store: store, appURL: appURL, logger: logger}
}

// Stage splits a submitted blob into iv and ciphertext, stores it, and
// returns the id plus the client-facing capability URL.
func (s *Service) Stage(ctx context.Context, body []byte) (id, url string, err error) {
	if len(body) <= IVSize {
		return "", "", apperr.New(apperr.BadRequest, "participation blob too short")
	}

	id, err = s.store.Stage(ctx, body[:IVSize], body[IVSize:])
	if err != nil {
		return "", "", fmt.Errorf("stage participation: %w", err)
	}

	s.logger.Debug("participation staged", zap.String("id", id))
	return id, fmt.Sprintf("%s/participation/%s", s.appURL, id), nil
}

// Fetch returns the staged blob as iv‖ciphertext without consuming it.
func (s *Service) Fetch(ctx context.Context, id string) ([]byte, error) {
	p, err := s.store.Fetch(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperr.New(apperr.NotFound, "Not Found")
		}
		return nil, err
	}
	return append(append([]byte{}, p.IV...), p.Data...), nil
}

// List returns all staged participations.
func (s *Service) List(ctx context.Context) ([]*Staged, error) {
	return s.store.List(ctx)
}
