package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-scoring-service/internal/domain"
)

const attemptColumns = `id, quiz_id, user_id, display_name, status, started_at, submitted_at, result`

// AttemptStore persists attempts in Postgres. Completion is a conditional update, so an
// attempt is scored at most once even with concurrent submits.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, user_id, display_name, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.QuizID, a.UserID, a.DisplayName, string(a.Status), a.StartedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, attemptID)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return a, nil
}

func (s *AttemptStore) CompleteAttempt(ctx context.Context, attemptID string, result domain.AttemptResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET status = $2, submitted_at = $3, result = $4::jsonb
		WHERE id = $1 AND status = $5`,
		attemptID, string(domain.AttemptSubmitted), result.SubmittedAt, string(data), string(domain.AttemptInProgress))
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id=$1)`, attemptID).Scan(&exists); err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrAttemptSubmitted
}

func (s *AttemptStore) ListSubmitted(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attemptColumns+` FROM attempts
		WHERE quiz_id = $1 AND status = $2
		ORDER BY submitted_at, id`,
		quizID, string(domain.AttemptSubmitted))
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AttemptStore) HasSubmitted(ctx context.Context, quizID, userID string) (bool, error) {
	var done bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM attempts WHERE quiz_id = $1 AND user_id = $2 AND status = $3)`,
		quizID, userID, string(domain.AttemptSubmitted)).Scan(&done)
	if err != nil {
		return false, fmt.Errorf("check submitted attempts: %w", err)
	}
	return done, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (domain.Attempt, error) {
	var (
		a           domain.Attempt
		status      string
		submittedAt *time.Time
		raw         []byte
	)
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.DisplayName, &status, &a.StartedAt, &submittedAt, &raw); err != nil {
		return domain.Attempt{}, err
	}
	a.Status = domain.AttemptStatus(status)
	a.SubmittedAt = submittedAt
	if len(raw) > 0 {
		var result domain.AttemptResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return domain.Attempt{}, fmt.Errorf("unmarshal result: %w", err)
		}
		a.Result = &result
	}
	return a, nil
}
