package study

import (
	"context"
	"fmt"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
	"go.uber.org/zap"
)

// Service contains the study publication logic.
type Service struct {
	store  Store
	owners OwnerKeys
	eng    engine.Engine
	logger *zap.Logger
}

// NewService creates a new study Service.
func NewService(store Store, owners OwnerKeys, eng engine.Engine, logger *zap.Logger) *Service {
	return &Service{store: store, owners: owners, eng: eng, logger: logger}
}

// Publish verifies a signed resource against the owner's registered key and
// stores it as a study.
func (s *Service) Publish(ctx context.Context, raw []byte) (*Study, error) {
	signed, err := engine.DeserializeResource(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "malformed signed resource", err)
	}

	ownerKey, err := s.owners.LookupPublicKey(ctx, signed.Owner)
	if err != nil {
		return nil, apperr.New(apperr.BadRequest, "unknown study owner")
	}

	ok, err := s.eng.CheckResourceSignature(signed, ownerKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "signature not valid", err)
	}
	if !ok {
		return nil, apperr.New(apperr.BadRequest, "signature not valid")
	}

	res := signed.Resource
	var studyURL *string
	if res.StudyURL != "" {
		studyURL = &res.StudyURL
	}
	st := &Study{
		ID:           res.ID,
		Name:         res.Name,
		Owner:        signed.Owner,
		Abstract:     res.Summary,
		Description:  res.Description,
		Duration:     res.Duration,
		Reward:       res.Reward,
		Qualifier:    res.Qualifier,
		Disqualifier: res.Disqualifier,
		Constraints:  res.Constraints,
		WebBased:     res.WebBased,
		StudyURL:     studyURL,
		Signature:    signed.Signature,
	}
	if err := s.store.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("store study: %w", err)
	}

	s.logger.Info("study published",
		zap.String("id", st.ID),
		zap.String("owner", st.Owner),
	)
	return st, nil
}

// List returns studies, optionally restricted to one owner.
func (s *Service) List(ctx context.Context, owner *string) ([]*Study, error) {
	return s.store.List(ctx, owner)
}
