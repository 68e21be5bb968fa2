package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swaasthya/saathi/internal/language"
)

// PostgresRepository persists sessions in PostgreSQL, using the version
// column for compare-and-swap.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresRepository{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_sessions (
			user_id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			prescription_summary TEXT NOT NULL DEFAULT '',
			language_code TEXT NOT NULL DEFAULT '',
			awaiting_voice BOOLEAN NOT NULL DEFAULT FALSE,
			awaiting_medicine_photo BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated ON conversation_sessions (updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Session, error) {
	var (
		s        Session
		phase    string
		langCode string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, phase, prescription_summary, language_code, awaiting_voice,
		        awaiting_medicine_photo, version, updated_at
		 FROM conversation_sessions WHERE user_id=$1`,
		userID,
	).Scan(&s.UserID, &phase, &s.PrescriptionSummary, &langCode, &s.AwaitingVoice,
		&s.AwaitingMedicinePhoto, &s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Phase = Phase(phase)
	if l, ok := language.ByCode(langCode); ok {
		s.TargetLanguage = l
	}
	return &s, nil
}

func (r *PostgresRepository) Put(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	next := s.Version + 1
	var (
		affected int64
		err      error
	)
	if s.Version == 0 {
		tag, execErr := r.pool.Exec(ctx,
			`INSERT INTO conversation_sessions (user_id, phase, prescription_summary, language_code,
			        awaiting_voice, awaiting_medicine_photo, version, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id) DO NOTHING`,
			s.UserID, string(s.Phase), s.PrescriptionSummary, s.TargetLanguage.Code,
			s.AwaitingVoice, s.AwaitingMedicinePhoto, next, now,
		)
		affected, err = tag.RowsAffected(), execErr
	} else {
		tag, execErr := r.pool.Exec(ctx,
			`UPDATE conversation_sessions
			 SET phase=$2, prescription_summary=$3, language_code=$4, awaiting_voice=$5,
			     awaiting_medicine_photo=$6, version=$7, updated_at=$8
			 WHERE user_id=$1 AND version=$9`,
			s.UserID, string(s.Phase), s.PrescriptionSummary, s.TargetLanguage.Code,
			s.AwaitingVoice, s.AwaitingMedicinePhoto, next, now, s.Version,
		)
		affected, err = tag.RowsAffected(), execErr
	}
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	s.Version = next
	s.UpdatedAt = now
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM conversation_sessions WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) PruneIdle(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversation_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM conversation_sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
