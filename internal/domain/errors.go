package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned for unknown attempt IDs.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSubmitted is returned when a store refuses to score an attempt twice.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrRetakeNotAllowed is returned when a quiz forbids a second attempt.
	ErrRetakeNotAllowed = errors.New("quiz does not allow retakes")
	// ErrInvalidQuiz wraps validation failures of a creator's quiz.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrBoardNotFound is returned when no live board exists for a quiz.
	ErrBoardNotFound = errors.New("leaderboard not found")
	// ErrParticipantNotFound is returned when a user acts on a board before joining.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
)
