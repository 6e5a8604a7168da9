package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists identities and the issued-credential log to
// PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Register implements Store. ON CONFLICT DO NOTHING makes re-registration a
// no-op at the row level: the stored role and key are never overwritten.
func (s *PostgresStore) Register(ctx context.Context, ident *Identity) error {
	ident.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, role, public_key, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		ident.ID, ident.Role, ident.PublicKey, ident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("register identity: %w", err)
	}
	return nil
}

// Lookup implements Store.
func (s *PostgresStore) Lookup(ctx context.Context, id string) (*Identity, error) {
	var ident Identity
	err := s.db.QueryRow(ctx,
		`SELECT id, role, public_key, created_at FROM users WHERE id = $1`, id,
	).Scan(&ident.ID, &ident.Role, &ident.PublicKey, &ident.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup identity %s: %w", id, err)
	}
	return &ident, nil
}

// LookupPublicKey implements Store.
func (s *PostgresStore) LookupPublicKey(ctx context.Context, id string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRow(ctx,
		`SELECT public_key FROM users WHERE id = $1 AND public_key IS NOT NULL`, id,
	).Scan(&key)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup public key %s: %w", id, err)
	}
	return key, nil
}

// ListPublicKeys implements Store.
func (s *PostgresStore) ListPublicKeys(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.Query(ctx,
		`SELECT public_key FROM users WHERE public_key IS NOT NULL ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list public keys: %w", err)
	}
	defer rows.Close()

	keys := [][]byte{}
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan public key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RecordIssuedCredential implements Store.
func (s *PostgresStore) RecordIssuedCredential(ctx context.Context, signature []byte) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO issued (signature) VALUES ($1)`, signature,
	); err != nil {
		return fmt.Errorf("record issued credential: %w", err)
	}
	return nil
}

// ListIssuedCredentials implements Store.
func (s *PostgresStore) ListIssuedCredentials(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.Query(ctx, `SELECT signature FROM issued ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list issued credentials: %w", err)
	}
	defer rows.Close()

	sigs := [][]byte{}
	for rows.Next() {
		var sig []byte
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("scan issued credential: %w", err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}
