package study

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const studyColumns = `id, name, owner, abstract, description, duration, reward,
	qualifier, disqualifier, constraints, web_based, study_url, signature, created_at`

// PostgresStore persists studies to PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, st *Study) error {
	st.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO studies (id, name, owner, abstract, description, duration, reward,
			qualifier, disqualifier, constraints, web_based, study_url, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		st.ID, st.Name, st.Owner, st.Abstract, st.Description, st.Duration, st.Reward,
		st.Qualifier, st.Disqualifier, st.Constraints, st.WebBased, st.StudyURL,
		st.Signature, st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create study: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Study, error) {
	rows, err := s.db.Query(ctx, `SELECT `+studyColumns+` FROM studies WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get study %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanStudy(rows)
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, owner *string) ([]*Study, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+studyColumns+` FROM studies
		 WHERE $1::text IS NULL OR owner = $1
		 ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// RewardInfo implements Store. The join mirrors the issuance lookup: only
// organizers with a key on record can own rewardable studies.
func (s *PostgresStore) RewardInfo(ctx context.Context, id string) (*RewardInfo, error) {
	var info RewardInfo
	err := s.db.QueryRow(ctx, `
		SELECT studies.reward, users.public_key
		FROM users
		JOIN studies ON studies.owner = users.id
		WHERE users.public_key IS NOT NULL AND studies.id = $1`, id,
	).Scan(&info.Reward, &info.OwnerKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reward info for study %s: %w", id, err)
	}
	return &info, nil
}

// ListWebBased implements Store.
func (s *PostgresStore) ListWebBased(ctx context.Context) ([]*Study, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+studyColumns+` FROM studies
		 WHERE web_based AND study_url IS NOT NULL
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list web-based studies: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Study, error) {
	studies := []*Study{}
	for rows.Next() {
		st, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		studies = append(studies, st)
	}
	return studies, rows.Err()
}

func scanStudy(rows pgx.Rows) (*Study, error) {
	var st Study
	if err := rows.Scan(
		&st.ID, &st.Name, &st.Owner, &st.Abstract, &st.Description, &st.Duration,
		&st.Reward, &st.Qualifier, &st.Disqualifier, &st.Constraints,
		&st.WebBased, &st.StudyURL, &st.Signature, &st.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan study row: %w", err)
	}
	return &st, nil
}
