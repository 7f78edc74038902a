package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
)

// WSHandler serves the live quiz room: viewers see the leaderboard move while learners submit.
type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.AttemptService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	AttemptID      string             `json:"attemptId"`
	Answers        domain.AnswerSheet `json:"answers"`
	ElapsedSeconds int                `json:"elapsedSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades the request and keeps the socket on the quiz board until the client leaves.
// Inbound "start" opens an attempt for the connected user and "submit" scores it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if quizID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing quizId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	joined, err := h.service.Join(ctx, quizID, userID, displayName)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, quizID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer cancel()
	defer func() {
		if err := h.service.Leave(context.WithoutCancel(ctx), quizID, userID); err != nil {
			h.logger.Debug("ws leave", "quiz_id", quizID, "user_id", userID, "error", err)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "quiz_id", quizID, "user_id", userID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if deliver(send, writerDone, outboundMessage[any]{Type: "joined", Payload: joined}) {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			if !deliver(send, writerDone, h.handle(ctx, quizID, userID, displayName, inbound)) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer and reports false once the writer has stopped.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *WSHandler) handle(ctx context.Context, quizID, userID, displayName string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "start":
		attempt, err := h.service.StartAttempt(ctx, quizID, userID, displayName)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "attempt", Payload: attempt}
	case "submit":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.AttemptID == "" {
			return errorMessage("invalid submit payload")
		}
		attempt, err := h.service.GetAttempt(ctx, payload.AttemptID)
		if err != nil {
			return errorMessage(err.Error())
		}
		if attempt.UserID != userID || attempt.QuizID != quizID {
			return errorMessage("attempt belongs to another participant")
		}
		result, err := h.service.SubmitAttempt(ctx, payload.AttemptID, payload.Answers, payload.ElapsedSeconds)
		if err != nil {
			return errorMessage(err.Error())
		}
		quiz, err := h.service.GetQuiz(ctx, quizID)
		if err != nil || !quiz.ShowCorrectAnswers {
			result = withoutAnswerKey(result)
		}
		return outboundMessage[any]{Type: "result", Payload: result}
	default:
		return errorMessage("unsupported message type")
	}
}
