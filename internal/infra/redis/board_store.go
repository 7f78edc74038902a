package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-scoring-service/internal/app"
)

// BoardStore is a Redis-aware implementation of app.BoardRepository.
// Boards live in process so broadcasts stay local; Redis only carries a liveness marker per
// quiz so other instances and operators can see which quizzes have an active room.
type BoardStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	boards map[string]*app.Board
}

func NewBoardStore(client *redis.Client, ttl time.Duration) *BoardStore {
	return &BoardStore{
		client: client,
		ttl:    ttl,
		boards: make(map[string]*app.Board),
	}
}

// GetOrCreate returns the quiz board and renews its liveness marker.
func (s *BoardStore) GetOrCreate(quizID string) *app.Board {
	s.mu.Lock()
	board, ok := s.boards[quizID]
	if !ok {
		board = app.NewBoard(quizID)
		s.boards[quizID] = board
	}
	s.mu.Unlock()
	s.touch(quizID)
	return board
}

// Get returns an existing board and renews its liveness marker.
func (s *BoardStore) Get(quizID string) (*app.Board, bool) {
	s.mu.RLock()
	board, ok := s.boards[quizID]
	s.mu.RUnlock()
	if ok {
		s.touch(quizID)
	}
	return board, ok
}

func (s *BoardStore) DeleteIfEmpty(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[quizID]
	if !ok {
		return
	}
	if board.IsEmpty() {
		delete(s.boards, quizID)
		_ = s.client.Del(context.Background(), s.key(quizID)).Err()
	}
}

// Live reports whether any instance currently marks the quiz as having a live board.
func (s *BoardStore) Live(ctx context.Context, quizID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(quizID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// touch writes the marker with a fresh TTL; it is best effort and recreates an expired key.
func (s *BoardStore) touch(quizID string) {
	_ = s.client.Set(context.Background(), s.key(quizID), "1", s.ttl).Err()
}

func (s *BoardStore) key(quizID string) string {
	return "quiz:board:" + quizID
}
