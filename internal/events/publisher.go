package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"quiz-scoring-service/internal/domain"
)

// EventAttemptScored is the event_type of messages published after an attempt is scored.
const EventAttemptScored = "attempt.scored"

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "quiz.attempts"

// Publisher announces scored attempts to downstream consumers.
type Publisher interface {
	PublishAttemptScored(ctx context.Context, result domain.AttemptResult) error
	Close() error
}

// AttemptScored is the message payload of EventAttemptScored.
type AttemptScored struct {
	AttemptID      string    `json:"attemptId"`
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	DisplayName    string    `json:"displayName,omitempty"`
	Score          float64   `json:"score"`
	TotalPoints    int       `json:"totalPoints"`
	Percentage     int       `json:"percentage"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// NewAttemptScored builds the event payload from a scored attempt.
func NewAttemptScored(result domain.AttemptResult) AttemptScored {
	return AttemptScored{
		AttemptID:      result.ID,
		QuizID:         result.QuizID,
		UserID:         result.UserID,
		DisplayName:    result.DisplayName,
		Score:          result.Score,
		TotalPoints:    result.TotalPoints,
		Percentage:     result.Percentage,
		ElapsedSeconds: result.ElapsedSeconds,
		SubmittedAt:    result.SubmittedAt,
	}
}

// WatermillPublisher publishes events through any watermill message.Publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

// NewWatermillPublisher wraps an existing watermill publisher (Kafka, gochannel, ...).
func NewWatermillPublisher(publisher message.Publisher, topic string, logger *slog.Logger) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WatermillPublisher{publisher: publisher, topic: topic, logger: logger}
}

// KafkaConfig configures NewKafkaPublisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// NewKafkaPublisher creates a Kafka-backed publisher.
func NewKafkaPublisher(cfg KafkaConfig) (*WatermillPublisher, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(pub, cfg.Topic, cfg.Logger), nil
}

func (p *WatermillPublisher) PublishAttemptScored(ctx context.Context, result domain.AttemptResult) error {
	payload, err := json.Marshal(NewAttemptScored(result))
	if err != nil {
		return fmt.Errorf("marshal attempt scored event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", EventAttemptScored)
	msg.Metadata.Set("quiz_id", result.QuizID)
	msg.Metadata.Set("attempt_id", result.ID)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("publish attempt scored",
			"attempt_id", result.ID,
			"topic", p.topic,
			"error", err)
		return fmt.Errorf("publish attempt scored: %w", err)
	}
	p.logger.Debug("published attempt scored", "attempt_id", result.ID, "topic", p.topic)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishAttemptScored(context.Context, domain.AttemptResult) error { return nil }

func (NopPublisher) Close() error { return nil }
