package scoring

import (
	"fmt"
	"strings"

	"quiz-scoring-service/internal/domain"
)

// MaxAcceptedAnswers bounds the acceptable answers a text question may list.
const MaxAcceptedAnswers = 7

// ValidationError is one problem found in a quiz definition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in one pass over a quiz.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + ve[0].Error()
	default:
		return fmt.Sprintf("validation failed: %d errors", len(ve))
	}
}

// Messages renders each error as "field: message".
func (ve ValidationErrors) Messages() []string {
	out := make([]string, 0, len(ve))
	for _, e := range ve {
		out = append(out, e.Error())
	}
	return out
}

// Report is the creator-facing validation outcome.
type Report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Report converts the collected errors into the creator-facing shape.
func (ve ValidationErrors) Report() Report {
	if len(ve) == 0 {
		return Report{Valid: true}
	}
	return Report{Valid: false, Errors: ve.Messages()}
}

type collector struct {
	errs ValidationErrors
}

func (c *collector) add(field, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks that a quiz is well formed for every declared question type.
// It reports all problems rather than stopping at the first, and returns nil for a valid quiz.
func Validate(quiz domain.Quiz) ValidationErrors {
	c := &collector{}
	if strings.TrimSpace(quiz.Title) == "" {
		c.add("title", "must not be empty")
	}
	if len(quiz.Questions) == 0 {
		c.add("questions", "quiz must contain at least one question")
	}
	for i, q := range quiz.Questions {
		validateQuestion(c, fmt.Sprintf("questions[%d]", i), q, false)
	}
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

func validateQuestion(c *collector, field string, q domain.Question, nested bool) {
	if q == nil {
		c.add(field, "question is missing")
		return
	}
	base := q.Base()
	if strings.TrimSpace(base.Text) == "" {
		c.add(field+".text", "must not be empty")
	}
	if base.Points < 1 {
		c.add(field+".points", "must be at least 1")
	}

	switch v := q.(type) {
	case *domain.MCQ:
		validateOptions(c, field, v.Options)
		validateSingleIndex(c, field, v.Correct, len(v.Options))
	case *domain.TrueFalse:
		if len(v.Options) != 2 {
			c.add(field+".options", "true/false question must have exactly 2 options")
		}
		if v.Correct != 0 && v.Correct != 1 {
			c.add(field+".correct", `must be "0" or "1"`)
		}
	case *domain.Checkbox:
		validateOptions(c, field, v.Options)
		if len(v.Correct) == 0 {
			c.add(field+".correct", "must select at least one correct option")
		}
		for _, idx := range v.Correct {
			if !indexInRange(idx, len(v.Options)) {
				c.add(field+".correct", "option %s does not exist", indexLabel(idx))
			}
		}
	case *domain.TextInput:
		if nested {
			c.add(field+".type", "text_input is not allowed as a sub-question")
		}
		validateAccepted(c, field, v.Accepted)
	case *domain.Paragraph:
		if nested {
			c.add(field+".type", "paragraph is not allowed as a sub-question")
			return
		}
		if len(v.SubQuestions) == 0 {
			c.add(field+".subQuestions", "paragraph must contain at least one sub-question")
		}
		for j, sub := range v.SubQuestions {
			validateQuestion(c, fmt.Sprintf("%s.subQuestions[%d]", field, j), sub, true)
		}
	case *domain.Unsupported:
		c.add(field+".type", "unsupported question type %q", v.Declared)
	case *domain.Malformed:
		c.add(field, "malformed question: %s", v.Reason)
	}
}

func validateOptions(c *collector, field string, options []domain.Option) {
	if len(options) < 2 {
		c.add(field+".options", "must have at least 2 options")
	}
	for i, opt := range options {
		if strings.TrimSpace(opt.Text) == "" {
			c.add(fmt.Sprintf("%s.options[%d].text", field, i), "must not be empty")
		}
	}
}

func validateSingleIndex(c *collector, field string, idx, optionCount int) {
	if !indexInRange(idx, optionCount) {
		c.add(field+".correct", "must reference an existing option (got %s)", indexLabel(idx))
	}
}

func validateAccepted(c *collector, field string, accepted []string) {
	if len(accepted) == 0 {
		c.add(field+".correct", "must list at least one acceptable answer")
		return
	}
	if len(accepted) > MaxAcceptedAnswers {
		c.add(field+".correct", "must list at most %d acceptable answers", MaxAcceptedAnswers)
	}
	for _, a := range accepted {
		if strings.TrimSpace(a) != "" {
			return
		}
	}
	c.add(field+".correct", "must contain at least one non-blank answer")
}

func indexInRange(idx, n int) bool {
	return idx >= 0 && idx < n
}

func indexLabel(idx int) string {
	if idx == domain.InvalidIndex {
		return "<unparseable>"
	}
	return fmt.Sprintf("%d", idx)
}
