package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const entryColumns = `id, participation, tag, study, iv, data, request, signature, value, coin, chain, created_at`

// PostgresStore persists the ledger to PostgreSQL. The UNIQUE constraint on
// ledger.tag turns a racing duplicate append into a rejected write.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, e *Entry) (int64, error) {
	e.CreatedAt = time.Now().UTC()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ledger (participation, tag, study, iv, data, request, signature, value, coin, chain, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.Participation, e.Tag, e.Study, e.IV, e.Data,
		e.Request, e.Signature, e.Value, e.Coin, e.Chain, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		if isDuplicateTag(err) {
			return 0, ErrDuplicateTag
		}
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	s.logger.Debug("ledger entry appended",
		zap.Int64("seq", e.Seq),
		zap.Bool("payout", e.IsPayout()),
	)
	return e.Seq, nil
}

// AppendConsuming implements Store. The staged-row delete and the ledger
// insert share one transaction: a duplicate tag rolls back the delete, so
// the participation stays available, and a missing participation prevents
// the insert.
func (s *PostgresStore) AppendConsuming(ctx context.Context, e *Entry, participationID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.QueryRow(ctx,
		`DELETE FROM participations WHERE id = $1 RETURNING iv, data`,
		participationID,
	).Scan(&e.IV, &e.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStagedNotFound
		}
		return 0, fmt.Errorf("consume participation %s: %w", participationID, err)
	}

	e.CreatedAt = time.Now().UTC()
	if err := tx.QueryRow(ctx, `
		INSERT INTO ledger (participation, tag, study, iv, data, request, signature, value, coin, chain, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.Participation, e.Tag, e.Study, e.IV, e.Data,
		e.Request, e.Signature, e.Value, e.Coin, e.Chain, e.CreatedAt,
	).Scan(&e.Seq); err != nil {
		if isDuplicateTag(err) {
			return 0, ErrDuplicateTag
		}
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit reward tx: %w", err)
	}

	s.logger.Debug("reward entry appended",
		zap.Int64("seq", e.Seq),
		zap.String("participation", participationID),
	)
	return e.Seq, nil
}

// ForEach implements Store.
func (s *PostgresStore) ForEach(ctx context.Context, f Filter, fn func(*Entry) error) error {
	query := `SELECT ` + entryColumns + ` FROM ledger
		WHERE ($1::text IS NULL OR study = $1)
		  AND (NOT $2 OR participation IS NULL)
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, f.Study, f.PayoutsOnly)
	if err != nil {
		return fmt.Errorf("scan ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListTransactions implements Store.
func (s *PostgresStore) ListTransactions(ctx context.Context, study *string) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT value, study, tag, coin FROM ledger
		 WHERE $1::text IS NULL OR study = $1
		 ORDER BY id ASC`, study)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []Transaction{}
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.Value, &t.Study, &t.Tag, &t.Coin); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListPayouts implements Store.
func (s *PostgresStore) ListPayouts(ctx context.Context) ([]*Entry, error) {
	var payouts []*Entry
	err := s.ForEach(ctx, Filter{PayoutsOnly: true}, func(e *Entry) error {
		payouts = append(payouts, e)
		return nil
	})
	return payouts, err
}

// scanEntry reads one ledger row in entryColumns order.
func scanEntry(rows pgx.Rows) (*Entry, error) {
	var e Entry
	if err := rows.Scan(
		&e.Seq, &e.Participation, &e.Tag, &e.Study, &e.IV, &e.Data,
		&e.Request, &e.Signature, &e.Value, &e.Coin, &e.Chain, &e.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan ledger row: %w", err)
	}
	return &e, nil
}

// isDuplicateTag reports whether err is the unique-violation raised by the
// ledger tag constraint.
func isDuplicateTag(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
