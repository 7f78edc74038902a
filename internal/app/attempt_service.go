package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/events"
	"quiz-scoring-service/internal/scoring"
)

// QuizSource is the durable store of quiz documents (Postgres, in-memory map).
type QuizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	StoreQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuizRepository serves quiz content, usually a cache in front of a QuizSource.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// AttemptRepository persists attempts and their results.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt) error
	GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
	// CompleteAttempt stores the result only while the attempt is still in progress and
	// returns domain.ErrAttemptSubmitted otherwise.
	CompleteAttempt(ctx context.Context, attemptID string, result domain.AttemptResult) error
	ListSubmitted(ctx context.Context, quizID string) ([]domain.Attempt, error)
	HasSubmitted(ctx context.Context, quizID, userID string) (bool, error)
}

// BoardRepository abstracts how live boards are kept (in-memory, Redis-marked, etc).
type BoardRepository interface {
	GetOrCreate(quizID string) *Board
	Get(quizID string) (*Board, bool)
	DeleteIfEmpty(quizID string)
	// Live reports whether a board for the quiz is currently active.
	Live(ctx context.Context, quizID string) (bool, error)
}

// AttemptService contains the quiz and attempt use cases around the scoring engine.
type AttemptService struct {
	quizzes   QuizRepository
	attempts  AttemptRepository
	boards    BoardRepository
	scorer    *scoring.Scorer
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an AttemptService.
type Option func(*AttemptService)

func WithScorer(s *scoring.Scorer) Option {
	return func(svc *AttemptService) {
		if s != nil {
			svc.scorer = s
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(svc *AttemptService) {
		if p != nil {
			svc.publisher = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *AttemptService) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(svc *AttemptService) { svc.now = now }
}

// WithIDGenerator replaces uuid-based IDs.
func WithIDGenerator(fn func() string) Option {
	return func(svc *AttemptService) { svc.newID = fn }
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptRepository, boards BoardRepository, opts ...Option) *AttemptService {
	svc := &AttemptService{
		quizzes:   quizzes,
		attempts:  attempts,
		boards:    boards,
		scorer:    scoring.New(),
		publisher: events.NopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(svc)
	}
	return svc
}

// ValidateQuiz reports every structural problem of a quiz definition.
func (s *AttemptService) ValidateQuiz(quiz domain.Quiz) scoring.ValidationErrors {
	return scoring.Validate(quiz)
}

// CreateQuiz validates and stores a new quiz. Invalid quizzes are rejected with an error
// wrapping both domain.ErrInvalidQuiz and the scoring.ValidationErrors.
func (s *AttemptService) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	if errs := scoring.Validate(quiz); errs != nil {
		return domain.Quiz{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuiz, errs)
	}
	if strings.TrimSpace(quiz.ID) == "" {
		quiz.ID = s.newID()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = s.now().UTC()
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	s.logger.Info("quiz created", "quiz_id", quiz.ID, "questions", len(quiz.Questions))
	return quiz, nil
}

func (s *AttemptService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// StartAttempt opens an in-progress attempt and puts the learner on the live board.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, userID, displayName string) (domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !quiz.AllowRetakes {
		done, err := s.attempts.HasSubmitted(ctx, quizID, userID)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("check previous attempts: %w", err)
		}
		if done {
			return domain.Attempt{}, domain.ErrRetakeNotAllowed
		}
	}

	attempt := domain.Attempt{
		ID:          s.newID(),
		QuizID:      quizID,
		UserID:      userID,
		DisplayName: displayName,
		Status:      domain.AttemptInProgress,
		StartedAt:   s.now().UTC(),
	}
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	s.boards.GetOrCreate(quizID).join(userID, displayName)
	return attempt, nil
}

// SubmitAttempt scores an attempt exactly once. Submitting an already scored attempt returns
// the stored result unchanged. When retakes are off, only the first of a user's attempts to be
// submitted is scored; later ones fail with domain.ErrRetakeNotAllowed.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string, answers domain.AnswerSheet, elapsedSeconds int) (domain.AttemptResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if attempt.Status == domain.AttemptSubmitted && attempt.Result != nil {
		return *attempt.Result, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if !quiz.AllowRetakes {
		// another open attempt of the same user may have been submitted first
		done, err := s.attempts.HasSubmitted(ctx, attempt.QuizID, attempt.UserID)
		if err != nil {
			return domain.AttemptResult{}, fmt.Errorf("check previous attempts: %w", err)
		}
		if done {
			return domain.AttemptResult{}, domain.ErrRetakeNotAllowed
		}
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	result := s.scorer.Score(quiz, answers, elapsedSeconds)
	result.ID = attempt.ID
	result.QuizID = attempt.QuizID
	result.UserID = attempt.UserID
	result.DisplayName = attempt.DisplayName
	result.SubmittedAt = s.now().UTC()

	if err := s.attempts.CompleteAttempt(ctx, attemptID, result); err != nil {
		if errors.Is(err, domain.ErrAttemptSubmitted) {
			// a concurrent submit won; hand back what it stored
			stored, getErr := s.attempts.GetAttempt(ctx, attemptID)
			if getErr == nil && stored.Result != nil {
				return *stored.Result, nil
			}
		}
		return domain.AttemptResult{}, fmt.Errorf("complete attempt: %w", err)
	}

	s.boards.GetOrCreate(result.QuizID).record(result)
	if err := s.publisher.PublishAttemptScored(ctx, result); err != nil {
		s.logger.Warn("attempt scored event not delivered", "attempt_id", result.ID, "error", err)
	}
	s.logger.Info("attempt scored",
		"attempt_id", result.ID,
		"quiz_id", result.QuizID,
		"score", result.Score,
		"total_points", result.TotalPoints,
		"percentage", result.Percentage)
	return result, nil
}

func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.attempts.GetAttempt(ctx, attemptID)
}

// Leaderboard ranks the best submitted attempt of every user. limit <= 0 returns everyone.
func (s *AttemptService) Leaderboard(ctx context.Context, quizID string, limit int) (domain.Leaderboard, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	attempts, err := s.attempts.ListSubmitted(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list attempts: %w", err)
	}
	live, err := s.boards.Live(ctx, quizID)
	if err != nil {
		s.logger.Warn("board liveness unavailable", "quiz_id", quizID, "error", err)
	}
	return domain.Leaderboard{
		QuizID:    quizID,
		Entries:   rank(bestPerUser(attempts), limit),
		Live:      live,
		UpdatedAt: s.now().UTC(),
	}, nil
}

// Analytics aggregates every submitted attempt of a quiz.
func (s *AttemptService) Analytics(ctx context.Context, quizID string) (domain.QuizAnalytics, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizAnalytics{}, err
	}
	attempts, err := s.attempts.ListSubmitted(ctx, quizID)
	if err != nil {
		return domain.QuizAnalytics{}, fmt.Errorf("list attempts: %w", err)
	}
	return analyze(quiz, attempts, s.scorer), nil
}

// Join puts a viewer on the live board of an existing quiz.
func (s *AttemptService) Join(ctx context.Context, quizID, userID, displayName string) (domain.Leaderboard, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Leaderboard{}, err
	}
	return s.boards.GetOrCreate(quizID).join(userID, displayName), nil
}

// Subscribe returns a channel that receives live leaderboard updates for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(_ context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	board, ok := s.boards.Get(quizID)
	if !ok {
		return nil, nil, domain.ErrBoardNotFound
	}
	ch, cancel := board.subscribe()
	return ch, cancel, nil
}

// Leave removes a viewer from the live board and drops the board once empty.
func (s *AttemptService) Leave(_ context.Context, quizID, userID string) error {
	board, ok := s.boards.Get(quizID)
	if !ok {
		return domain.ErrBoardNotFound
	}
	if _, ok := board.leave(userID); !ok {
		return domain.ErrParticipantNotFound
	}
	if board.IsEmpty() {
		s.boards.DeleteIfEmpty(quizID)
	}
	return nil
}
