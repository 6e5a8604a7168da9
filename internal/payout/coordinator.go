// Package payout implements the payout coordinator: it redeems accumulated,
// unspent reward credits for an opaque payout receipt. Which specific
// rewards are spent stays hidden — that property comes from the engine's
// proof; the coordinator only enforces ledger-level bookkeeping.
package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/prepams/prepams/internal/apperr"
	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/internal/ledger"
	"go.uber.org/zap"
)

// Coordinator validates payout proofs against the current ledger state and
// appends payout entries.
type Coordinator struct {
	store  ledger.Store
	eng    engine.Engine
	state  *ledger.StateHolder
	logger *zap.Logger
}

// New creates a payout Coordinator.
func New(store ledger.Store, eng engine.Engine, state *ledger.StateHolder, logger *zap.Logger) *Coordinator {
	return &Coordinator{store: store, eng: eng, state: state, logger: logger}
}

// Request verifies a payout proof and appends the payout entry, returning
// the engine-issued receipt. Engine failures (insufficient balance, spent
// nullifier, malformed proof) are BadRequest and never retried; a replayed
// identical proof trips the tag constraint and is Conflict.
func (c *Coordinator) Request(ctx context.Context, proof []byte) ([]byte, error) {
	var receipt []byte
	err := c.state.Swap(func(cur *engine.IssuerState) (*engine.IssuerState, error) {
		res, err := c.eng.CheckPayoutRequest(cur, proof)
		if err != nil {
			return nil, apperr.Wrap(apperr.BadRequest, "payout request rejected", err)
		}

		e := &ledger.Entry{
			Tag:   engine.PayoutTag(res.Target, res.Recipient),
			Value: res.Value,
			Coin:  res.Receipt,
			Chain: res.Chain,
		}
		if _, err := c.store.Append(ctx, e); err != nil {
			if errors.Is(err, ledger.ErrDuplicateTag) {
				return nil, apperr.New(apperr.Conflict, "payout request already processed")
			}
			return nil, fmt.Errorf("append payout entry: %w", err)
		}

		next, err := c.eng.Append(cur, e.Record())
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "issuer state fold failed after append", err)
		}

		receipt = res.Receipt
		c.logger.Info("payout processed",
			zap.Int64("seq", e.Seq),
			zap.String("target", res.Target),
			zap.Int("value", res.Value),
		)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
