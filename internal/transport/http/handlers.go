package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/export"
)

// Handler ties the REST routes to the attempt service.
type Handler struct {
	service  *app.AttemptService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service *app.AttemptService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

type startAttemptRequest struct {
	UserID      string `json:"userId" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

type submitAttemptRequest struct {
	Answers        domain.AnswerSheet `json:"answers"`
	ElapsedSeconds int                `json:"elapsedSeconds"`
}

type leaderboardQuery struct {
	Limit int `validate:"gte=0,lte=1000"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// CreateQuiz validates and stores a quiz definition.
func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid quiz document: "+err.Error())
		return
	}
	created, err := h.service.CreateQuiz(r.Context(), quiz)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ValidateQuiz reports structural problems without storing anything.
func (h *Handler) ValidateQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid quiz document: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.service.ValidateQuiz(quiz).Report())
}

// GetQuiz serves the learner view with the answer key removed. ?view=creator returns the
// stored document as is.
func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if r.URL.Query().Get("view") == "creator" {
		writeJSON(w, http.StatusOK, quiz)
		return
	}
	view, err := learnerView(quiz)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("render quiz: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	attempt, err := h.service.StartAttempt(r.Context(), chi.URLParam(r, "quizID"), req.UserID, req.DisplayName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.SubmitAttempt(r.Context(), chi.URLParam(r, "attemptID"), req.Answers, req.ElapsedSeconds)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(r, result))
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if attempt.Result != nil {
		shown := h.present(r, *attempt.Result)
		attempt.Result = &shown
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := leaderboardQuery{Limit: 10}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	if err := h.validate.Struct(q); err != nil {
		writeError(w, h.logger, err)
		return
	}
	board, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "quizID"), q.Limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Analytics(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportResults streams the ranked results and question analytics as an .xlsx workbook.
func (h *Handler) ExportResults(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	quiz, err := h.service.GetQuiz(r.Context(), quizID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	board, err := h.service.Leaderboard(r.Context(), quizID, 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	stats, err := h.service.Analytics(r.Context(), quizID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	data, err := export.ResultsXLSX(quiz, board, stats)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-results.xlsx"`, quizID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// present hides the answer key unless the quiz opts into showing it.
func (h *Handler) present(r *http.Request, result domain.AttemptResult) domain.AttemptResult {
	quiz, err := h.service.GetQuiz(r.Context(), result.QuizID)
	if err == nil && quiz.ShowCorrectAnswers {
		return result
	}
	return withoutAnswerKey(result)
}
