// Package scoring validates quiz definitions and grades learner attempts against them.
//
// Both entry points are pure functions of their inputs: no I/O, no clock, no shared mutable
// state. They are safe to call concurrently for distinct attempts.
package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"quiz-scoring-service/internal/domain"
)

// Scorer grades attempts. The zero value is not usable; construct with New.
type Scorer struct {
	similarity TextSimilarity
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithTextSimilarity replaces the strategy used for partial-credit text answers.
func WithTextSimilarity(fn TextSimilarity) Option {
	return func(s *Scorer) {
		if fn != nil {
			s.similarity = fn
		}
	}
}

// New returns a Scorer using keyword overlap for lenient text answers unless overridden.
func New(opts ...Option) *Scorer {
	s := &Scorer{similarity: KeywordOverlap}
	for _, o := range opts {
		o(s)
	}
	return s
}

var defaultScorer = New()

// Score grades answers against quiz with the default strategies.
func Score(quiz domain.Quiz, answers domain.AnswerSheet, elapsedSeconds int) domain.AttemptResult {
	return defaultScorer.Score(quiz, answers, elapsedSeconds)
}

// Score grades answers against quiz. It never panics on learner input: missing or malformed
// answers are unanswered, broken questions score zero with StatusInvalidQuestion, unknown
// types score zero with StatusUnsupportedType. Answers for indices outside the quiz are ignored.
func (s *Scorer) Score(quiz domain.Quiz, answers domain.AnswerSheet, elapsedSeconds int) domain.AttemptResult {
	result := domain.AttemptResult{
		ElapsedSeconds: elapsedSeconds,
		Questions:      make([]domain.QuestionResult, 0, len(quiz.Questions)),
	}
	var earned float64
	for i, q := range quiz.Questions {
		qr := s.scoreQuestion(i, q, answers[i], false)
		result.TotalPoints += qr.PointsPossible
		earned += qr.PointsEarned
		result.Questions = append(result.Questions, qr)
		tally(&result.Stats, qr.Status)
	}
	result.Stats.QuestionCount = len(quiz.Questions)
	result.Score = roundPoints(earned)
	result.Percentage = percentage(result.Score, result.TotalPoints)
	return result
}

func tally(stats *domain.AttemptStats, status domain.QuestionStatus) {
	switch status {
	case domain.StatusCorrect:
		stats.CorrectCount++
	case domain.StatusPartial:
		stats.PartialCount++
	case domain.StatusUnanswered:
		stats.UnansweredCount++
	default:
		stats.IncorrectCount++
	}
}

func (s *Scorer) scoreQuestion(index int, q domain.Question, payload any, nested bool) domain.QuestionResult {
	switch v := q.(type) {
	case *domain.MCQ:
		return scoreSingle(index, domain.TypeMCQ, v.Prompt, v.Options, v.Correct, payload)
	case *domain.TrueFalse:
		return scoreSingle(index, domain.TypeTrueFalse, v.Prompt, v.Options, v.Correct, payload)
	case *domain.Checkbox:
		return scoreCheckbox(index, v, payload, v.AllowPartialCredit && !nested)
	case *domain.TextInput:
		if nested {
			return invalid(index, v.Type(), v.Prompt)
		}
		return s.scoreText(index, v, payload)
	case *domain.Paragraph:
		if nested {
			return invalid(index, v.Type(), domain.Prompt{})
		}
		return s.scoreParagraph(index, v, payload)
	case *domain.Malformed:
		return invalid(index, v.Type(), v.Prompt)
	case *domain.Unsupported:
		return domain.QuestionResult{
			Index:          index,
			Type:           v.Type(),
			Status:         domain.StatusUnsupportedType,
			PointsPossible: possible(v.Prompt),
		}
	default:
		return domain.QuestionResult{Index: index, Status: domain.StatusUnsupportedType}
	}
}

func scoreSingle(index int, typ domain.QuestionType, prompt domain.Prompt, options []domain.Option, correct int, payload any) domain.QuestionResult {
	if !indexInRange(correct, len(options)) {
		return invalid(index, typ, prompt)
	}
	r := domain.QuestionResult{
		Index:          index,
		Type:           typ,
		PointsPossible: possible(prompt),
		CorrectAnswer:  []int{correct},
		CorrectText:    []string{options[correct].Text},
	}
	selected, ok := selectedIndex(payload)
	if !ok {
		r.Status = domain.StatusUnanswered
		return r
	}
	r.Selected = []int{selected}
	r.SelectedText = optionTexts(options, r.Selected)
	if selected == correct {
		r.Status = domain.StatusCorrect
		r.IsCorrect = true
		r.PointsEarned = float64(r.PointsPossible)
		return r
	}
	r.Status = domain.StatusIncorrect
	return r
}

func scoreCheckbox(index int, q *domain.Checkbox, payload any, partial bool) domain.QuestionResult {
	if len(q.Correct) == 0 {
		return invalid(index, q.Type(), q.Prompt)
	}
	expected := make(map[int]struct{}, len(q.Correct))
	for _, idx := range q.Correct {
		if !indexInRange(idx, len(q.Options)) {
			return invalid(index, q.Type(), q.Prompt)
		}
		expected[idx] = struct{}{}
	}
	r := domain.QuestionResult{
		Index:          index,
		Type:           q.Type(),
		PointsPossible: possible(q.Prompt),
		CorrectAnswer:  sortedKeys(expected),
	}
	r.CorrectText = optionTexts(q.Options, r.CorrectAnswer)

	selected, ok := selectedIndices(payload)
	if !ok {
		r.Status = domain.StatusUnanswered
		return r
	}
	r.Selected = selected
	r.SelectedText = optionTexts(q.Options, selected)

	hits, wrong := 0, 0
	for _, idx := range selected {
		if _, ok := expected[idx]; ok {
			hits++
		} else {
			wrong++
		}
	}
	if wrong == 0 && hits == len(expected) {
		r.Status = domain.StatusCorrect
		r.IsCorrect = true
		r.PointsEarned = float64(r.PointsPossible)
		return r
	}
	r.Status = domain.StatusIncorrect
	if !partial {
		return r
	}
	if net := hits - wrong; net > 0 {
		r.PointsEarned = roundPoints(float64(r.PointsPossible*net) / float64(len(expected)))
		r.Status = domain.StatusPartial
	}
	return r
}

func (s *Scorer) scoreText(index int, q *domain.TextInput, payload any) domain.QuestionResult {
	accepted := make([]string, 0, len(q.Accepted))
	for _, a := range q.Accepted {
		if n := normalizeText(a, q.CaseSensitive); n != "" {
			accepted = append(accepted, n)
		}
	}
	if len(accepted) == 0 {
		return invalid(index, q.Type(), q.Prompt)
	}
	r := domain.QuestionResult{
		Index:          index,
		Type:           q.Type(),
		PointsPossible: possible(q.Prompt),
		CorrectText:    append([]string(nil), q.Accepted...),
	}
	raw, ok := submittedText(payload)
	if !ok {
		r.Status = domain.StatusUnanswered
		return r
	}
	r.SelectedText = []string{strings.TrimSpace(raw)}
	submitted := normalizeText(raw, q.CaseSensitive)

	for _, a := range accepted {
		if submitted == a {
			r.Status = domain.StatusCorrect
			r.IsCorrect = true
			r.PointsEarned = float64(r.PointsPossible)
			if q.AllowPartialCredit {
				one := 1.0
				r.Similarity = &one
			}
			return r
		}
	}
	r.Status = domain.StatusIncorrect
	if !q.AllowPartialCredit {
		return r
	}
	best := 0.0
	for _, a := range accepted {
		if sim := clampUnit(s.similarity(submitted, a)); sim > best {
			best = sim
		}
	}
	r.Similarity = &best
	if earned := roundPoints(float64(r.PointsPossible) * best); earned > 0 {
		r.PointsEarned = earned
		r.Status = domain.StatusPartial
	}
	return r
}

func (s *Scorer) scoreParagraph(index int, q *domain.Paragraph, payload any) domain.QuestionResult {
	r := domain.QuestionResult{Index: index, Type: q.Type()}
	if len(q.SubQuestions) == 0 {
		r.Status = domain.StatusInvalidQuestion
		return r
	}
	subAnswers := subSheet(payload)
	allCorrect, answered := true, false
	var earned float64
	r.SubResults = make([]domain.QuestionResult, 0, len(q.SubQuestions))
	for j, sub := range q.SubQuestions {
		sr := s.scoreQuestion(j, sub, subAnswers[j], true)
		r.PointsPossible += sr.PointsPossible
		earned += sr.PointsEarned
		if !sr.IsCorrect {
			allCorrect = false
		}
		switch sr.Status {
		case domain.StatusCorrect, domain.StatusPartial, domain.StatusIncorrect:
			answered = true
		}
		r.SubResults = append(r.SubResults, sr)
	}
	r.PointsEarned = roundPoints(earned)
	r.IsCorrect = allCorrect
	switch {
	case allCorrect:
		r.Status = domain.StatusCorrect
	case !answered:
		r.Status = domain.StatusUnanswered
	case r.PointsEarned > 0:
		r.Status = domain.StatusPartial
	default:
		r.Status = domain.StatusIncorrect
	}
	return r
}

func invalid(index int, typ domain.QuestionType, prompt domain.Prompt) domain.QuestionResult {
	return domain.QuestionResult{
		Index:          index,
		Type:           typ,
		Status:         domain.StatusInvalidQuestion,
		PointsPossible: possible(prompt),
	}
}

func possible(p domain.Prompt) int {
	if p.Points < 0 {
		return 0
	}
	return p.Points
}

// selectedIndex reads a single-choice payload. A one-element list is accepted.
func selectedIndex(payload any) (int, bool) {
	switch v := payload.(type) {
	case []any:
		if len(v) != 1 {
			return 0, false
		}
		return domain.ParseIndex(v[0])
	case []string:
		if len(v) != 1 {
			return 0, false
		}
		return domain.ParseIndex(v[0])
	default:
		return domain.ParseIndex(payload)
	}
}

// selectedIndices reads a multi-choice payload, dropping duplicates and unparseable entries.
func selectedIndices(payload any) ([]int, bool) {
	var items []any
	switch v := payload.(type) {
	case nil:
		return nil, false
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []int:
		for _, n := range v {
			items = append(items, n)
		}
	default:
		items = []any{v}
	}
	set := make(map[int]struct{}, len(items))
	for _, item := range items {
		if idx, ok := domain.ParseIndex(item); ok {
			set[idx] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, false
	}
	return sortedKeys(set), true
}

func submittedText(payload any) (string, bool) {
	var s string
	switch v := payload.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func subSheet(payload any) domain.AnswerSheet {
	if payload == nil {
		return domain.AnswerSheet{}
	}
	return domain.NewAnswerSheet(payload)
}

func normalizeText(s string, caseSensitive bool) string {
	s = strings.TrimSpace(s)
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

func optionTexts(options []domain.Option, indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if indexInRange(idx, len(options)) {
			out = append(out, options[idx].Text)
		}
	}
	return out
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// roundPoints trims float noise from fractional credit to four decimal places.
func roundPoints(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10000) / 10000
}

// percentage rounds half up and stays within [0, 100]; a zero-point quiz yields 0.
func percentage(score float64, total int) int {
	if total <= 0 {
		return 0
	}
	p := math.Floor(score/float64(total)*100 + 0.5)
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return int(p)
}
