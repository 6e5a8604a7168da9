// Package reward implements the reward issuance coordinator: it turns a
// verified confirmed participation into a ledger entry exactly once.
package reward

import (
	"context"
	"errors"
	"fmt"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/internal/ledger"
	"github.com/prepams/prepams/internal/study"
	"go.uber.org/zap"
)

// StudyInfo resolves the reward amount and owner key for a study.
// *study.PostgresStore and *study.MemoryStore satisfy this interface.
type StudyInfo interface {
	RewardInfo(ctx context.Context, id string) (*study.RewardInfo, error)
}

// Coordinator validates and atomically transforms a staged participation
// plus an engine-verified reward into a new ledger entry.
type Coordinator struct {
	store   ledger.Store
	studies StudyInfo
	eng     engine.Engine
	state   *ledger.StateHolder
	logger  *zap.Logger
}

// New creates a reward issuance Coordinator.
func New(store ledger.Store, studies StudyInfo, eng engine.Engine, state *ledger.StateHolder, logger *zap.Logger) *Coordinator {
	return &Coordinator{store: store, studies: studies, eng: eng, state: state, logger: logger}
}

// Issue processes a serialized confirmed participation and returns the
// serialized reward entry, the client's receipt.
//
// The engine call, the consume+append transaction, and the issuer state
// replacement run inside one StateHolder.Swap critical section, so the chain
// signature produced against the current head is always the one persisted
// next. The ledger tag constraint stays the sole authority on duplicates:
// a racing issuance from another process fails its insert, not a read check.
func (c *Coordinator) Issue(ctx context.Context, raw []byte) ([]byte, error) {
	p, err := engine.DeserializeParticipation(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "malformed confirmed participation", err)
	}

	info, err := c.studies.RewardInfo(ctx, p.Study)
	if err != nil {
		return nil, apperr.New(apperr.BadRequest, "study does not exist")
	}

	var receipt []byte
	err = c.state.Swap(func(cur *engine.IssuerState) (*engine.IssuerState, error) {
		entry, err := c.eng.IssueReward(cur, p, info.OwnerKey, info.Reward)
		if err != nil {
			return nil, apperr.Wrap(apperr.BadRequest, "reward verification failed", err)
		}

		e := &ledger.Entry{
			Participation: &p.ID,
			Tag:           p.Tag,
			Study:         &p.Study,
			Request:       p.Request,
			Signature:     p.Signature,
			Value:         p.Value,
			Coin:          entry.Coin,
			Chain:         entry.Signature,
		}
		if _, err := c.store.AppendConsuming(ctx, e, p.ID); err != nil {
			switch {
			case errors.Is(err, ledger.ErrDuplicateTag):
				return nil, apperr.New(apperr.Conflict, "reward for this participation already issued")
			case errors.Is(err, ledger.ErrStagedNotFound):
				return nil, apperr.New(apperr.BadRequest, "participation does not exist")
			default:
				return nil, fmt.Errorf("append reward entry: %w", err)
			}
		}

		next, err := c.eng.Append(cur, e.Record())
		if err != nil {
			// The row is committed but the fold rejected it: the ledger and
			// the engine disagree, which replay would report as Fatal.
			return nil, apperr.Wrap(apperr.Internal, "issuer state fold failed after append", err)
		}

		receipt, err = entry.Serialize()
		if err != nil {
			return nil, fmt.Errorf("serialize reward entry: %w", err)
		}

		c.logger.Info("reward issued",
			zap.Int64("seq", e.Seq),
			zap.String("study", p.Study),
			zap.Int("value", p.Value),
		)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
