package domain

import "time"

// AttemptStatus tracks an attempt from start to submission.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Attempt is one learner's pass through a quiz.
type Attempt struct {
	ID          string         `json:"id"`
	QuizID      string         `json:"quizId"`
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName"`
	Status      AttemptStatus  `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
	Result      *AttemptResult `json:"result,omitempty"`
}

// Participant is a learner on a live board together with their best result so far.
type Participant struct {
	UserID         string
	DisplayName    string
	AttemptID      string
	Score          float64
	Percentage     int
	ElapsedSeconds int
	Submitted      bool
	LastUpdated    time.Time
}

// LeaderboardEntry is a snapshot-friendly view of a ranked attempt.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"userId"`
	DisplayName    string  `json:"displayName"`
	AttemptID      string  `json:"attemptId,omitempty"`
	Score          float64 `json:"score"`
	Percentage     int     `json:"percentage"`
	ElapsedSeconds int     `json:"elapsedSeconds"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	Live      bool               `json:"live"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// QuestionAnalytics aggregates one question across submitted attempts.
type QuestionAnalytics struct {
	Index          int          `json:"index"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"text"`
	PointsPossible int          `json:"pointsPossible"`
	CorrectRate    float64      `json:"correctRate"`
	UnansweredRate float64      `json:"unansweredRate"`
	AveragePoints  float64      `json:"averagePoints"`
}

// QuizAnalytics summarises every submitted attempt of a quiz.
type QuizAnalytics struct {
	QuizID                string              `json:"quizId"`
	Attempts              int                 `json:"attempts"`
	Participants          int                 `json:"participants"`
	AverageScore          float64             `json:"averageScore"`
	AveragePercentage     float64             `json:"averagePercentage"`
	HighestPercentage     int                 `json:"highestPercentage"`
	LowestPercentage      int                 `json:"lowestPercentage"`
	AverageElapsedSeconds float64             `json:"averageElapsedSeconds"`
	Questions             []QuestionAnalytics `json:"questions"`
}
