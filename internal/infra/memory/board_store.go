package memory

import (
	"context"
	"sync"

	"quiz-scoring-service/internal/app"
)

// BoardStore is an in-memory implementation of app.BoardRepository.
type BoardStore struct {
	mu     sync.RWMutex
	boards map[string]*app.Board
}

func NewBoardStore() *BoardStore {
	return &BoardStore{
		boards: make(map[string]*app.Board),
	}
}

func (s *BoardStore) GetOrCreate(quizID string) *app.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	if board, ok := s.boards[quizID]; ok {
		return board
	}
	board := app.NewBoard(quizID)
	s.boards[quizID] = board
	return board
}

func (s *BoardStore) Get(quizID string) (*app.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[quizID]
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
	}
}

// Live reports whether the quiz has a board with at least one participant.
func (s *BoardStore) Live(_ context.Context, quizID string) (bool, error) {
	board, ok := s.Get(quizID)
	return ok && !board.IsEmpty(), nil
}
