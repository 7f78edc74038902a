package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Settings are behavioural toggles for the play surface. None of them change scoring math.
type Settings struct {
	RandomizeQuestions bool `json:"randomizeQuestions"`
	RandomizeOptions   bool `json:"randomizeOptions"`
	AllowRetakes       bool `json:"allowRetakes"`
	ShowCorrectAnswers bool `json:"showCorrectAnswers"`
	IsPublic           bool `json:"isPublic"`
}

// Quiz is a creator's quiz. Question order is the index space used by answer sheets.
type Quiz struct {
	ID          string
	CreatorID   string
	Title       string
	Description string
	Category    string
	// TimeLimit is in minutes; 0 means unlimited. Enforced by the play-session timer, not the scorer.
	TimeLimit int
	Settings
	Questions []Question
	CreatedAt time.Time
}

type quizDoc struct {
	ID          string `json:"id,omitempty"`
	CreatorID   string `json:"creatorId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	TimeLimit   int    `json:"timeLimit"`
	Settings
	Questions []json.RawMessage `json:"questions"`
	CreatedAt time.Time         `json:"createdAt,omitempty"`
}

// UnmarshalJSON decodes the stored quiz document into typed questions.
func (q *Quiz) UnmarshalJSON(data []byte) error {
	var doc quizDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	questions := make([]Question, 0, len(doc.Questions))
	for i, raw := range doc.Questions {
		question, err := DecodeQuestion(raw)
		if err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		questions = append(questions, question)
	}
	*q = Quiz{
		ID:          doc.ID,
		CreatorID:   doc.CreatorID,
		Title:       doc.Title,
		Description: doc.Description,
		Category:    doc.Category,
		TimeLimit:   doc.TimeLimit,
		Settings:    doc.Settings,
		Questions:   questions,
		CreatedAt:   doc.CreatedAt,
	}
	return nil
}

// MarshalJSON writes the quiz in its stored document shape.
func (q Quiz) MarshalJSON() ([]byte, error) {
	doc := quizDoc{
		ID:          q.ID,
		CreatorID:   q.CreatorID,
		Title:       q.Title,
		Description: q.Description,
		Category:    q.Category,
		TimeLimit:   q.TimeLimit,
		Settings:    q.Settings,
		Questions:   make([]json.RawMessage, 0, len(q.Questions)),
		CreatedAt:   q.CreatedAt,
	}
	for i, question := range q.Questions {
		raw, err := EncodeQuestion(question)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		doc.Questions = append(doc.Questions, raw)
	}
	return json.Marshal(doc)
}
