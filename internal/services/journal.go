package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const journalSchema = `
	CREATE TABLE IF NOT EXISTS submission_attempts (
		id          UUID PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		priority    TEXT NOT NULL DEFAULT '',
		http_status INTEGER NOT NULL DEFAULT 0,
		message     TEXT NOT NULL DEFAULT '',
		duration_ns BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS submission_attempts_fingerprint_idx ON submission_attempts (fingerprint);
`

// JournalService records submission attempts in PostgreSQL so timed-out
// submissions can be correlated with records that landed anyway.
type JournalService struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewJournalService creates a new journal service
func NewJournalService(db *pgxpool.Pool, logger *zap.SugaredLogger) *JournalService {
	return &JournalService{db: db, logger: logger}
}

// EnsureSchema creates the journal table if needed
func (s *JournalService) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Record stores one attempt
func (s *JournalService) Record(ctx context.Context, a *models.SubmissionAttempt) error {
	query := `
		INSERT INTO submission_attempts (id, fingerprint, outcome, category, priority, http_status, message, duration_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		a.ID, a.Fingerprint, a.Outcome,
		a.Category, a.Priority,
		a.HTTPStatus, a.Message,
		a.Duration.Nanoseconds(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission attempt: %w", err)
	}

	s.logger.Infow("Submission attempt journaled",
		"attempt_id", a.ID,
		"outcome", a.Outcome,
	)
	return nil
}

// Recent returns the latest attempts, newest first
func (s *JournalService) Recent(ctx context.Context, limit int) ([]models.SubmissionAttempt, error) {
	query := `
		SELECT id, fingerprint, outcome, category, priority, http_status, message, duration_ns, created_at
		FROM submission_attempts
		ORDER BY created_at DESC
		LIMIT $1
	`
	return s.query(ctx, query, limit)
}

// ByFingerprint returns every attempt for the same draft content
func (s *JournalService) ByFingerprint(ctx context.Context, fingerprint string, limit int) ([]models.SubmissionAttempt, error) {
	query := `
		SELECT id, fingerprint, outcome, category, priority, http_status, message, duration_ns, created_at
		FROM submission_attempts
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return s.query(ctx, query, fingerprint, limit)
}

// Ping checks the database connection.
func (s *JournalService) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *JournalService) query(ctx context.Context, query string, args ...any) ([]models.SubmissionAttempt, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submission attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]models.SubmissionAttempt, 0)
	for rows.Next() {
		var a models.SubmissionAttempt
		var durationNs int64
		if err := rows.Scan(&a.ID, &a.Fingerprint, &a.Outcome, &a.Category, &a.Priority,
			&a.HTTPStatus, &a.Message, &durationNs, &a.CreatedAt); err != nil {
			s.logger.Warnw("Skipping unreadable journal row", "error", err)
			continue
		}
		a.Duration = time.Duration(durationNs)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
