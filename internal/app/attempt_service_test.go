package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/infra/memory"
	"quiz-scoring-service/internal/scoring"
)

type recordingPublisher struct {
	mu      sync.Mutex
	results []domain.AttemptResult
	err     error
}

func (p *recordingPublisher) PublishAttemptScored(_ context.Context, result domain.AttemptResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

type fixture struct {
	service   *app.AttemptService
	publisher *recordingPublisher
	now       time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, quizzes map[string]domain.Quiz) *fixture {
	t.Helper()
	f := &fixture{
		publisher: &recordingPublisher{},
		now:       time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	seq := 0
	repo := memory.NewQuizRepository(memory.NewStaticQuizSource(quizzes), 5*time.Minute)
	f.service = app.NewAttemptService(repo, memory.NewAttemptStore(), memory.NewBoardStore(),
		app.WithPublisher(f.publisher),
		app.WithClock(func() time.Time { return f.now }),
		app.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return f
}

func twoQuestionQuiz(allowRetakes bool) domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Title:    "Basics",
		Settings: domain.Settings{AllowRetakes: allowRetakes},
		Questions: []domain.Question{
			&domain.MCQ{
				Prompt:  domain.Prompt{Text: "2 + 2?", Points: 2},
				Options: []domain.Option{{Text: "3"}, {Text: "4"}},
				Correct: 1,
			},
			&domain.TextInput{
				Prompt:   domain.Prompt{Text: "Capital of Italy?", Points: 2},
				Accepted: []string{"Rome"},
			},
		},
	}
}

func TestCreateQuizRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.CreateQuiz(context.Background(), domain.Quiz{Title: ""})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuiz))

	var verrs scoring.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestCreateQuizAssignsIdentity(t *testing.T) {
	f := newFixture(t, nil)
	quiz := twoQuestionQuiz(false)
	quiz.ID = ""

	created, err := f.service.CreateQuiz(context.Background(), quiz)
	require.NoError(t, err)
	assert.Equal(t, "id-1", created.ID)
	assert.Equal(t, f.now, created.CreatedAt)

	got, err := f.service.GetQuiz(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Basics", got.Title)
}

func TestStartAttemptUnknownQuiz(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.StartAttempt(context.Background(), "nope", "u1", "Alice")
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestSubmitAttemptScoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(false)})

	attempt, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptInProgress, attempt.Status)

	f.advance(time.Minute)
	result, err := f.service.SubmitAttempt(ctx, attempt.ID, domain.AnswerSheet{0: "1", 1: " rome "}, 60)
	require.NoError(t, err)
	assert.Equal(t, 4.0, result.Score)
	assert.Equal(t, 100, result.Percentage)
	assert.Equal(t, attempt.ID, result.ID)
	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, "Alice", result.DisplayName)
	assert.Equal(t, f.now, result.SubmittedAt)
	assert.Equal(t, 1, f.publisher.count())

	stored, err := f.service.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptSubmitted, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, 4.0, stored.Result.Score)
}

func TestSubmitAttemptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(false)})
	attempt, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)

	first, err := f.service.SubmitAttempt(ctx, attempt.ID, domain.AnswerSheet{0: "1"}, 30)
	require.NoError(t, err)

	f.advance(time.Hour)
	second, err := f.service.SubmitAttempt(ctx, attempt.ID, domain.AnswerSheet{0: "1", 1: "Rome"}, 90)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.publisher.count())
}

func TestSubmitAttemptClampsNegativeElapsed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(true)})
	attempt, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)

	result, err := f.service.SubmitAttempt(ctx, attempt.ID, nil, -15)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ElapsedSeconds)
	assert.Equal(t, 0, result.Percentage)
}

func TestSubmitAttemptSurvivesPublisherFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(true)})
	f.publisher.err = errors.New("broker down")
	attempt, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)

	_, err = f.service.SubmitAttempt(ctx, attempt.ID, domain.AnswerSheet{0: "1"}, 5)
	assert.NoError(t, err)
}

func TestSubmitUnknownAttempt(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.SubmitAttempt(context.Background(), "missing", nil, 0)
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

func TestRetakesRefusedWhenDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{
		"quiz-1": twoQuestionQuiz(false),
		"quiz-2": func() domain.Quiz { q := twoQuestionQuiz(true); q.ID = "quiz-2"; return q }(),
	})

	attempt, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)
	// an unfinished attempt does not block a fresh start
	_, err = f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)

	_, err = f.service.SubmitAttempt(ctx, attempt.ID, nil, 10)
	require.NoError(t, err)
	_, err = f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	assert.ErrorIs(t, err, domain.ErrRetakeNotAllowed)

	retake, err := f.service.StartAttempt(ctx, "quiz-2", "u1", "Alice")
	require.NoError(t, err)
	_, err = f.service.SubmitAttempt(ctx, retake.ID, nil, 10)
	require.NoError(t, err)
	_, err = f.service.StartAttempt(ctx, "quiz-2", "u1", "Alice")
	assert.NoError(t, err)
}

func TestRetakeRefusedOnSecondOpenAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(false)})

	first, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)
	second, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)

	_, err = f.service.SubmitAttempt(ctx, first.ID, domain.AnswerSheet{0: "0"}, 30)
	require.NoError(t, err)
	_, err = f.service.SubmitAttempt(ctx, second.ID, domain.AnswerSheet{0: "1", 1: "Rome"}, 20)
	assert.ErrorIs(t, err, domain.ErrRetakeNotAllowed)
	assert.Equal(t, 1, f.publisher.count())

	stored, err := f.service.GetAttempt(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptInProgress, stored.Status)

	lb, err := f.service.Leaderboard(ctx, "quiz-1", 0)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, first.ID, lb.Entries[0].AttemptID)
	assert.Equal(t, 0.0, lb.Entries[0].Score)
}

func TestLeaderboardRanksBestAttemptAndBreaksTiesByTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(true)})

	submit := func(user, name string, answers domain.AnswerSheet, elapsed int) {
		t.Helper()
		a, err := f.service.StartAttempt(ctx, "quiz-1", user, name)
		require.NoError(t, err)
		f.advance(time.Second)
		_, err = f.service.SubmitAttempt(ctx, a.ID, answers, elapsed)
		require.NoError(t, err)
	}

	submit("u1", "Alice", domain.AnswerSheet{0: "1"}, 40)
	submit("u2", "Bob", domain.AnswerSheet{0: "1", 1: "rome"}, 90)
	submit("u3", "Cara", domain.AnswerSheet{0: "1", 1: "rome"}, 60)
	submit("u1", "Alice", domain.AnswerSheet{0: "0"}, 10)
	submit("u4", "Dan", domain.AnswerSheet{0: "1"}, 40)

	lb, err := f.service.Leaderboard(ctx, "quiz-1", 0)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 4)

	order := make([]string, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		order = append(order, e.UserID)
	}
	assert.Equal(t, []string{"u3", "u2", "u1", "u4"}, order)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, 4, lb.Entries[3].Rank)
	assert.Equal(t, 2.0, lb.Entries[2].Score)

	top, err := f.service.Leaderboard(ctx, "quiz-1", 2)
	require.NoError(t, err)
	assert.Len(t, top.Entries, 2)

	_, err = f.service.Leaderboard(ctx, "other", 0)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestAnalytics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(true)})

	empty, err := f.service.Analytics(ctx, "quiz-1")
	require.NoError(t, err)
	assert.Zero(t, empty.Attempts)
	require.Len(t, empty.Questions, 2)
	assert.Equal(t, 2, empty.Questions[1].PointsPossible)

	for i, answers := range []domain.AnswerSheet{
		{0: "1", 1: "Rome"},
		{0: "1"},
		{0: "0", 1: "Milan"},
		{},
	} {
		a, err := f.service.StartAttempt(ctx, "quiz-1", fmt.Sprintf("u%d", i%3), "")
		require.NoError(t, err)
		_, err = f.service.SubmitAttempt(ctx, a.ID, answers, 10*(i+1))
		require.NoError(t, err)
	}

	stats, err := f.service.Analytics(ctx, "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Attempts)
	assert.Equal(t, 3, stats.Participants)
	assert.Equal(t, 1.5, stats.AverageScore)
	assert.Equal(t, 37.5, stats.AveragePercentage)
	assert.Equal(t, 100, stats.HighestPercentage)
	assert.Equal(t, 0, stats.LowestPercentage)
	assert.Equal(t, 25.0, stats.AverageElapsedSeconds)

	q0 := stats.Questions[0]
	assert.Equal(t, domain.TypeMCQ, q0.Type)
	assert.Equal(t, 0.5, q0.CorrectRate)
	assert.Equal(t, 0.25, q0.UnansweredRate)
	assert.Equal(t, 1.0, q0.AveragePoints)

	q1 := stats.Questions[1]
	assert.Equal(t, 0.25, q1.CorrectRate)
	assert.Equal(t, 0.5, q1.UnansweredRate)
}

func TestSubscribeReceivesLiveUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(true)})

	_, _, err := f.service.Subscribe(ctx, "quiz-1")
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)

	_, err = f.service.Join(ctx, "quiz-1", "viewer", "Viewer")
	require.NoError(t, err)
	ch, cancel, err := f.service.Subscribe(ctx, "quiz-1")
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	require.Len(t, initial.Entries, 1)

	attempt, err := f.service.StartAttempt(ctx, "quiz-1", "u1", "Alice")
	require.NoError(t, err)
	<-ch // Alice joined

	_, err = f.service.SubmitAttempt(ctx, attempt.ID, domain.AnswerSheet{0: "1", 1: "Rome"}, 20)
	require.NoError(t, err)

	select {
	case update := <-ch:
		require.Len(t, update.Entries, 2)
		assert.Equal(t, "u1", update.Entries[0].UserID)
		assert.Equal(t, 4.0, update.Entries[0].Score)
		assert.Equal(t, attempt.ID, update.Entries[0].AttemptID)
	case <-time.After(time.Second):
		t.Fatal("expected leaderboard update")
	}

	assert.ErrorIs(t, f.service.Leave(ctx, "quiz-1", "stranger"), domain.ErrParticipantNotFound)
	require.NoError(t, f.service.Leave(ctx, "quiz-1", "u1"))
	require.NoError(t, f.service.Leave(ctx, "quiz-1", "viewer"))
	_, _, err = f.service.Subscribe(ctx, "quiz-1")
	assert.ErrorIs(t, err, domain.ErrBoardNotFound)
	assert.ErrorIs(t, f.service.Leave(ctx, "quiz-1", "viewer"), domain.ErrBoardNotFound)
}

func TestLeaderboardReportsLiveRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]domain.Quiz{"quiz-1": twoQuestionQuiz(true)})

	lb, err := f.service.Leaderboard(ctx, "quiz-1", 0)
	require.NoError(t, err)
	assert.False(t, lb.Live)

	_, err = f.service.Join(ctx, "quiz-1", "viewer", "Viewer")
	require.NoError(t, err)
	lb, err = f.service.Leaderboard(ctx, "quiz-1", 0)
	require.NoError(t, err)
	assert.True(t, lb.Live)

	require.NoError(t, f.service.Leave(ctx, "quiz-1", "viewer"))
	lb, err = f.service.Leaderboard(ctx, "quiz-1", 0)
	require.NoError(t, err)
	assert.False(t, lb.Live)
}
