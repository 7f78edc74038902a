package domain

import "time"

// QuestionStatus classifies the outcome of one scored question.
type QuestionStatus string

const (
	StatusCorrect         QuestionStatus = "correct"
	StatusPartial         QuestionStatus = "partial"
	StatusIncorrect       QuestionStatus = "incorrect"
	StatusUnanswered      QuestionStatus = "unanswered"
	StatusInvalidQuestion QuestionStatus = "invalid_question"
	StatusUnsupportedType QuestionStatus = "unsupported_type"
)

// QuestionResult is the breakdown entry for one question (or paragraph sub-question).
type QuestionResult struct {
	Index          int            `json:"index"`
	Type           QuestionType   `json:"type"`
	Status         QuestionStatus `json:"status"`
	IsCorrect      bool           `json:"isCorrect"`
	PointsEarned   float64        `json:"pointsEarned"`
	PointsPossible int            `json:"pointsPossible"`
	Selected       []int          `json:"selectedAnswer,omitempty"`
	SelectedText   []string       `json:"selectedText,omitempty"`
	CorrectAnswer  []int          `json:"correctAnswer,omitempty"`
	CorrectText    []string       `json:"correctText,omitempty"`
	// Similarity is set for text answers graded with partial credit.
	Similarity *float64         `json:"similarity,omitempty"`
	SubResults []QuestionResult `json:"subResults,omitempty"`
}

// AttemptStats are counts over the top-level questions of an attempt.
type AttemptStats struct {
	QuestionCount   int `json:"questionCount"`
	CorrectCount    int `json:"correctCount"`
	PartialCount    int `json:"partialCount"`
	IncorrectCount  int `json:"incorrectCount"`
	UnansweredCount int `json:"unansweredCount"`
}

// AttemptResult is produced once per submitted attempt and never mutated afterwards.
// Identity and SubmittedAt are stamped by the caller; the scorer fills the rest.
type AttemptResult struct {
	ID             string           `json:"id,omitempty"`
	QuizID         string           `json:"quizId,omitempty"`
	UserID         string           `json:"userId,omitempty"`
	DisplayName    string           `json:"displayName,omitempty"`
	Score          float64          `json:"score"`
	TotalPoints    int              `json:"totalPoints"`
	Percentage     int              `json:"percentage"`
	ElapsedSeconds int              `json:"elapsedSeconds"`
	Stats          AttemptStats     `json:"stats"`
	Questions      []QuestionResult `json:"questions"`
	SubmittedAt    time.Time        `json:"submittedAt,omitempty"`
}
