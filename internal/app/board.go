package app

import (
	"sync"
	"time"

	"quiz-scoring-service/internal/domain"
)

// Board is the in-memory live leaderboard of one quiz. It tracks who is in the room and the
// best submitted result of each participant, and fans out snapshots to subscribers.
type Board struct {
	quizID       string
	now          func() time.Time
	mu           sync.RWMutex
	participants map[string]*domain.Participant
	subscribers  map[chan domain.Leaderboard]struct{}
}

// NewBoard is exported for infrastructure layers that keep boards.
func NewBoard(quizID string) *Board {
	return NewBoardWithClock(quizID, time.Now)
}

// NewBoardWithClock allows deterministic timestamps in tests.
func NewBoardWithClock(quizID string, now func() time.Time) *Board {
	return &Board{
		quizID:       quizID,
		now:          now,
		participants: make(map[string]*domain.Participant),
		subscribers:  make(map[chan domain.Leaderboard]struct{}),
	}
}

func (b *Board) join(userID, displayName string) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.participants[userID]; ok {
		if displayName != "" {
			p.DisplayName = displayName
		}
	} else {
		b.participants[userID] = &domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			LastUpdated: b.now(),
		}
	}
	return b.broadcastLocked()
}

// record keeps the participant's best result: higher score wins, equal scores go to the faster attempt.
func (b *Board) record(result domain.AttemptResult) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.participants[result.UserID]
	if !ok {
		p = &domain.Participant{UserID: result.UserID, DisplayName: result.DisplayName}
		b.participants[result.UserID] = p
	}
	if !p.Submitted || result.Score > p.Score ||
		(result.Score == p.Score && result.ElapsedSeconds < p.ElapsedSeconds) {
		p.AttemptID = result.ID
		p.Score = result.Score
		p.Percentage = result.Percentage
		p.ElapsedSeconds = result.ElapsedSeconds
		p.Submitted = true
		p.LastUpdated = b.now()
		if result.DisplayName != "" {
			p.DisplayName = result.DisplayName
		}
	}
	return b.broadcastLocked()
}

func (b *Board) leave(userID string) (domain.Leaderboard, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.participants[userID]; !ok {
		return domain.Leaderboard{}, false
	}
	delete(b.participants, userID)
	return b.broadcastLocked(), true
}

// IsEmpty reports whether nobody is on the board.
func (b *Board) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.participants) == 0
}

func (b *Board) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	initial := b.snapshotLocked()
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Board) broadcastLocked() domain.Leaderboard {
	lb := b.snapshotLocked()
	for ch := range b.subscribers {
		select {
		case ch <- lb:
		default:
			// slow subscriber: replace its oldest pending snapshot
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (b *Board) snapshotLocked() domain.Leaderboard {
	rows := make([]standing, 0, len(b.participants))
	for _, p := range b.participants {
		rows = append(rows, standing{
			entry: domain.LeaderboardEntry{
				UserID:         p.UserID,
				DisplayName:    p.DisplayName,
				AttemptID:      p.AttemptID,
				Score:          p.Score,
				Percentage:     p.Percentage,
				ElapsedSeconds: p.ElapsedSeconds,
			},
			submitted: p.Submitted,
			at:        p.LastUpdated,
		})
	}
	return domain.Leaderboard{
		QuizID:    b.quizID,
		Entries:   rank(rows, 0),
		Live:      len(b.participants) > 0,
		UpdatedAt: b.now(),
	}
}
