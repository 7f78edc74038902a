package app

import (
	"math"
	"sort"
	"time"

	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/scoring"
)

type standing struct {
	entry     domain.LeaderboardEntry
	submitted bool
	at        time.Time
}

// rank orders standings by score desc, then submitted before not yet submitted, then elapsed
// time asc, then who got there first, then name. It assigns 1-based ranks and trims to limit
// when limit > 0.
func rank(rows []standing, limit int) []domain.LeaderboardEntry {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.entry.Score != b.entry.Score {
			return a.entry.Score > b.entry.Score
		}
		if a.submitted != b.submitted {
			return a.submitted
		}
		if a.entry.ElapsedSeconds != b.entry.ElapsedSeconds {
			return a.entry.ElapsedSeconds < b.entry.ElapsedSeconds
		}
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.entry.DisplayName != b.entry.DisplayName {
			return a.entry.DisplayName < b.entry.DisplayName
		}
		return a.entry.UserID < b.entry.UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		row.entry.Rank = i + 1
		entries = append(entries, row.entry)
	}
	return entries
}

// bestPerUser keeps each user's best submitted attempt.
func bestPerUser(attempts []domain.Attempt) []standing {
	best := make(map[string]standing)
	for _, a := range attempts {
		if a.Result == nil {
			continue
		}
		row := standing{
			entry: domain.LeaderboardEntry{
				UserID:         a.UserID,
				DisplayName:    a.DisplayName,
				AttemptID:      a.ID,
				Score:          a.Result.Score,
				Percentage:     a.Result.Percentage,
				ElapsedSeconds: a.Result.ElapsedSeconds,
			},
			submitted: true,
			at:        a.Result.SubmittedAt,
		}
		cur, ok := best[a.UserID]
		if !ok || better(row, cur) {
			best[a.UserID] = row
		}
	}
	rows := make([]standing, 0, len(best))
	for _, row := range best {
		rows = append(rows, row)
	}
	return rows
}

func better(a, b standing) bool {
	if a.entry.Score != b.entry.Score {
		return a.entry.Score > b.entry.Score
	}
	if a.entry.ElapsedSeconds != b.entry.ElapsedSeconds {
		return a.entry.ElapsedSeconds < b.entry.ElapsedSeconds
	}
	return a.at.Before(b.at)
}

// analyze summarises submitted attempts of one quiz.
func analyze(quiz domain.Quiz, attempts []domain.Attempt, scorer *scoring.Scorer) domain.QuizAnalytics {
	out := domain.QuizAnalytics{QuizID: quiz.ID}

	// an empty sheet yields the possible points of every question without duplicating scoring rules
	blank := scorer.Score(quiz, nil, 0)
	questions := make([]domain.QuestionAnalytics, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = domain.QuestionAnalytics{Index: i, PointsPossible: blank.Questions[i].PointsPossible}
		if q != nil {
			questions[i].Type = q.Type()
			questions[i].Text = q.Base().Text
		}
	}

	users := make(map[string]struct{})
	correct := make([]int, len(questions))
	unanswered := make([]int, len(questions))
	points := make([]float64, len(questions))
	var scoreSum, elapsedSum float64
	var percentSum int
	for _, a := range attempts {
		r := a.Result
		if r == nil {
			continue
		}
		if out.Attempts == 0 || r.Percentage > out.HighestPercentage {
			out.HighestPercentage = r.Percentage
		}
		if out.Attempts == 0 || r.Percentage < out.LowestPercentage {
			out.LowestPercentage = r.Percentage
		}
		out.Attempts++
		users[a.UserID] = struct{}{}
		scoreSum += r.Score
		percentSum += r.Percentage
		elapsedSum += float64(r.ElapsedSeconds)
		for _, qr := range r.Questions {
			if qr.Index < 0 || qr.Index >= len(questions) {
				continue
			}
			if qr.IsCorrect {
				correct[qr.Index]++
			}
			if qr.Status == domain.StatusUnanswered {
				unanswered[qr.Index]++
			}
			points[qr.Index] += qr.PointsEarned
		}
	}
	out.Participants = len(users)
	if out.Attempts > 0 {
		n := float64(out.Attempts)
		out.AverageScore = round2(scoreSum / n)
		out.AveragePercentage = round2(float64(percentSum) / n)
		out.AverageElapsedSeconds = round2(elapsedSum / n)
		for i := range questions {
			questions[i].CorrectRate = round2(float64(correct[i]) / n)
			questions[i].UnansweredRate = round2(float64(unanswered[i]) / n)
			questions[i].AveragePoints = round2(points[i] / n)
		}
	}
	out.Questions = questions
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
