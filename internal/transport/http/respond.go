package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/scoring"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain and validation errors onto HTTP status codes.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var invalidQuiz scoring.ValidationErrors
	var invalidRequest validator.ValidationErrors
	switch {
	case errors.As(err, &invalidQuiz):
		writeJSON(w, http.StatusUnprocessableEntity, invalidQuiz.Report())
	case errors.As(err, &invalidRequest):
		fields := make([]string, 0, len(invalidRequest))
		for _, fe := range invalidRequest {
			fields = append(fields, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Fields: fields})
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrBoardNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRetakeNotAllowed),
		errors.Is(err, domain.ErrAttemptSubmitted):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// withoutAnswerKey strips the correct answers from a result for quizzes that keep them hidden.
func withoutAnswerKey(result domain.AttemptResult) domain.AttemptResult {
	result.Questions = stripAnswers(result.Questions)
	return result
}

func stripAnswers(questions []domain.QuestionResult) []domain.QuestionResult {
	if questions == nil {
		return nil
	}
	out := make([]domain.QuestionResult, len(questions))
	for i, q := range questions {
		q.CorrectAnswer = nil
		q.CorrectText = nil
		q.SubResults = stripAnswers(q.SubResults)
		out[i] = q
	}
	return out
}

// learnerView renders a quiz without the "correct" field of any question or sub-question.
func learnerView(quiz domain.Quiz) (map[string]any, error) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	hideCorrect(doc["questions"])
	return doc, nil
}

func hideCorrect(questions any) {
	list, _ := questions.([]any)
	for _, item := range list {
		q, ok := item.(map[string]any)
		if !ok {
			continue
		}
		delete(q, "correct")
		hideCorrect(q["subQuestions"])
	}
}
