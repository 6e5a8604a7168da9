package participation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists staged participations to PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Stage implements Store.
func (s *PostgresStore) Stage(ctx context.Context, iv, data []byte) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.Exec(ctx,
		`INSERT INTO participations (id, iv, data, created_at) VALUES ($1, $2, $3, $4)`,
		id, iv, data, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("stage participation: %w", err)
	}
	return id, nil
}

// Fetch implements Store.
func (s *PostgresStore) Fetch(ctx context.Context, id string) (*Staged, error) {
	var p Staged
	err := s.db.QueryRow(ctx,
		`SELECT id, iv, data, created_at FROM participations WHERE id = $1`, id,
	).Scan(&p.ID, &p.IV, &p.Data, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch participation %s: %w", id, err)
	}
	return &p, nil
}

// Consume implements Store.
func (s *PostgresStore) Consume(ctx context.Context, id string) ([]byte, []byte, error) {
	var iv, data []byte
	err := s.db.QueryRow(ctx,
		`DELETE FROM participations WHERE id = $1 RETURNING iv, data`, id,
	).Scan(&iv, &data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("consume participation %s: %w", id, err)
	}
	return iv, data, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]*Staged, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, iv, data, created_at FROM participations ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	staged := []*Staged{}
	for rows.Next() {
		var p Staged
		if err := rows.Scan(&p.ID, &p.IV, &p.Data, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		staged = append(staged, &p)
	}
	return staged, rows.Err()
}
