package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-scoring-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.Attempt)}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.attempts[attempt.ID]; exists {
		return fmt.Errorf("attempt %s already exists", attempt.ID)
	}
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) CompleteAttempt(_ context.Context, attemptID string, result domain.AttemptResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptInProgress {
		return domain.ErrAttemptSubmitted
	}
	submittedAt := result.SubmittedAt
	attempt.Status = domain.AttemptSubmitted
	attempt.SubmittedAt = &submittedAt
	attempt.Result = &result
	s.attempts[attemptID] = attempt
	return nil
}

// ListSubmitted returns submitted attempts of a quiz in submission order.
func (s *AttemptStore) ListSubmitted(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.Status == domain.AttemptSubmitted {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].SubmittedAt, out[j].SubmittedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *AttemptStore) HasSubmitted(_ context.Context, quizID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.Status == domain.AttemptSubmitted {
			return true, nil
		}
	}
	return false, nil
}
