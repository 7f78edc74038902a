package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// QuestionType is the declared type tag of a stored question.
type QuestionType string

const (
	TypeMCQ       QuestionType = "mcq"
	TypeCheckbox  QuestionType = "checkbox"
	TypeTrueFalse QuestionType = "true_false"
	TypeTextInput QuestionType = "text_input"
	TypeParagraph QuestionType = "paragraph"
)

// InvalidIndex marks a stored correct-answer index that could not be parsed.
const InvalidIndex = -1

// Option is one selectable answer. Image is an opaque attachment reference.
type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// UnmarshalJSON accepts either {"text": ..., "image": ...} or a bare string.
func (o *Option) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*o = Option{Text: text}
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Option(p)
	return nil
}

// Prompt holds the fields every question carries. Media and explanation are opaque.
type Prompt struct {
	Text        string
	Points      int
	Images      []string
	Audio       string
	Explanation string
}

// Question is implemented by exactly the variants in this file.
type Question interface {
	Type() QuestionType
	Base() Prompt
	isQuestion()
}

// MCQ is a single-answer multiple choice question.
type MCQ struct {
	Prompt
	Options []Option
	Correct int
}

// TrueFalse is an MCQ restricted to two options.
type TrueFalse struct {
	Prompt
	Options []Option
	Correct int
}

// Checkbox accepts any subset of its options.
type Checkbox struct {
	Prompt
	Options            []Option
	Correct            []int
	AllowPartialCredit bool
}

// TextInput is graded against a list of acceptable free-text answers.
type TextInput struct {
	Prompt
	Accepted           []string
	CaseSensitive      bool
	AllowPartialCredit bool
}

// Paragraph groups sub-questions under a shared passage. Its own Points are not scored.
type Paragraph struct {
	Prompt
	SubQuestions []Question
}

// Unsupported keeps a question whose type tag is unknown so it can be surfaced, not dropped.
type Unsupported struct {
	Prompt
	Declared string
	raw      json.RawMessage
}

// Malformed keeps a question whose stored document could not be read into its declared shape.
type Malformed struct {
	Prompt
	Declared string
	Reason   string
	raw      json.RawMessage
}

func (*MCQ) Type() QuestionType { return TypeMCQ }
func (*TrueFalse) Type() QuestionType { return TypeTrueFalse }
func (*Checkbox) Type() QuestionType { return TypeCheckbox }
func (*TextInput) Type() QuestionType { return TypeTextInput }
func (*Paragraph) Type() QuestionType { return TypeParagraph }
func (u *Unsupported) Type() QuestionType { return QuestionType(u.Declared) }
func (m *Malformed) Type() QuestionType { return QuestionType(m.Declared) }

func (q *MCQ) Base() Prompt { return q.Prompt }
func (q *TrueFalse) Base() Prompt { return q.Prompt }
func (q *Checkbox) Base() Prompt { return q.Prompt }
func (q *TextInput) Base() Prompt { return q.Prompt }
func (q *Paragraph) Base() Prompt { return q.Prompt }
func (q *Unsupported) Base() Prompt { return q.Prompt }
func (q *Malformed) Base() Prompt { return q.Prompt }

func (*MCQ) isQuestion() {}
func (*TrueFalse) isQuestion() {}
func (*Checkbox) isQuestion() {}
func (*TextInput) isQuestion() {}
func (*Paragraph) isQuestion() {}
func (*Unsupported) isQuestion() {}
func (*Malformed) isQuestion() {}

// questionDoc is the stored JSON shape shared by every question type.
type questionDoc struct {
	Type               string            `json:"type"`
	Text               string            `json:"text"`
	Points             int               `json:"points"`
	Images             []string          `json:"images,omitempty"`
	Audio              string            `json:"audio,omitempty"`
	Explanation        string            `json:"explanation,omitempty"`
	Options            []Option          `json:"options,omitempty"`
	Correct            json.RawMessage   `json:"correct,omitempty"`
	AllowPartialCredit bool              `json:"allowPartialCredit,omitempty"`
	CaseSensitive      bool              `json:"caseSensitive,omitempty"`
	SubQuestions       []json.RawMessage `json:"subQuestions,omitempty"`
}

func defaultTrueFalseOptions() []Option {
	return []Option{{Text: "True"}, {Text: "False"}}
}

// DecodeQuestion converts one stored question document into its variant.
// Malformed correct-answer values never fail decoding; they surface as InvalidIndex. A document
// whose fields do not fit the question shape becomes a *Malformed.
func DecodeQuestion(data []byte) (Question, error) {
	var doc questionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return salvage(data, err), nil
	}
	prompt := Prompt{
		Text:        doc.Text,
		Points:      doc.Points,
		Images:      doc.Images,
		Audio:       doc.Audio,
		Explanation: doc.Explanation,
	}
	correct := decodeLoose(doc.Correct)

	switch QuestionType(doc.Type) {
	case TypeMCQ:
		return &MCQ{Prompt: prompt, Options: doc.Options, Correct: singleIndex(correct)}, nil
	case TypeTrueFalse:
		options := doc.Options
		if len(options) == 0 {
			options = defaultTrueFalseOptions()
		}
		return &TrueFalse{Prompt: prompt, Options: options, Correct: singleIndex(correct)}, nil
	case TypeCheckbox:
		return &Checkbox{
			Prompt:             prompt,
			Options:            doc.Options,
			Correct:            indexList(correct),
			AllowPartialCredit: doc.AllowPartialCredit,
		}, nil
	case TypeTextInput:
		return &TextInput{
			Prompt:             prompt,
			Accepted:           stringList(correct),
			CaseSensitive:      doc.CaseSensitive,
			AllowPartialCredit: doc.AllowPartialCredit,
		}, nil
	case TypeParagraph:
		subs := make([]Question, 0, len(doc.SubQuestions))
		for i, raw := range doc.SubQuestions {
			sub, err := DecodeQuestion(raw)
			if err != nil {
				return nil, fmt.Errorf("sub-question %d: %w", i, err)
			}
			subs = append(subs, sub)
		}
		return &Paragraph{Prompt: prompt, SubQuestions: subs}, nil
	default:
		return &Unsupported{Prompt: prompt, Declared: doc.Type, raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// EncodeQuestion writes a question back to its stored JSON shape.
func EncodeQuestion(q Question) ([]byte, error) {
	base := q.Base()
	doc := questionDoc{
		Type:        string(q.Type()),
		Text:        base.Text,
		Points:      base.Points,
		Images:      base.Images,
		Audio:       base.Audio,
		Explanation: base.Explanation,
	}
	var correct any
	switch v := q.(type) {
	case *MCQ:
		doc.Options = v.Options
		correct = strconv.Itoa(v.Correct)
	case *TrueFalse:
		doc.Options = v.Options
		correct = strconv.Itoa(v.Correct)
	case *Checkbox:
		doc.Options = v.Options
		doc.AllowPartialCredit = v.AllowPartialCredit
		list := make([]string, 0, len(v.Correct))
		for _, idx := range v.Correct {
			list = append(list, strconv.Itoa(idx))
		}
		correct = list
	case *TextInput:
		doc.CaseSensitive = v.CaseSensitive
		doc.AllowPartialCredit = v.AllowPartialCredit
		correct = v.Accepted
	case *Paragraph:
		for _, sub := range v.SubQuestions {
			raw, err := EncodeQuestion(sub)
			if err != nil {
				return nil, err
			}
			doc.SubQuestions = append(doc.SubQuestions, raw)
		}
	case *Unsupported:
		if len(v.raw) > 0 {
			return v.raw, nil
		}
	case *Malformed:
		if len(v.raw) > 0 {
			return v.raw, nil
		}
	}
	if correct != nil {
		raw, err := json.Marshal(correct)
		if err != nil {
			return nil, fmt.Errorf("encode correct answer: %w", err)
		}
		doc.Correct = raw
	}
	return json.Marshal(doc)
}

// salvage reads whatever common fields survive in a question document that failed to decode.
func salvage(data []byte, cause error) *Malformed {
	m := &Malformed{Reason: cause.Error(), raw: append(json.RawMessage(nil), data...)}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return m
	}
	if s, ok := fields["type"].(string); ok {
		m.Declared = s
	}
	if s, ok := fields["text"].(string); ok {
		m.Text = s
	}
	if n, ok := fields["points"].(float64); ok && n == math.Trunc(n) && math.Abs(n) <= math.MaxInt32 {
		m.Points = int(n)
	}
	return m
}

func decodeLoose(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// ParseIndex reads an option index from a numeric string or an integral number.
func ParseIndex(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	case float64:
		if t < 0 || t != math.Trunc(t) || t > math.MaxInt32 {
			return 0, false
		}
		return int(t), true
	case int:
		if t < 0 {
			return 0, false
		}
		return t, true
	case json.Number:
		return ParseIndex(t.String())
	default:
		return 0, false
	}
}

func singleIndex(v any) int {
	if list, ok := v.([]any); ok && len(list) == 1 {
		v = list[0]
	}
	if n, ok := ParseIndex(v); ok {
		return n
	}
	return InvalidIndex
}

func indexList(v any) []int {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		items = t
	default:
		items = []any{t}
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		if n, ok := ParseIndex(item); ok {
			out = append(out, n)
		} else {
			out = append(out, InvalidIndex)
		}
	}
	return out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, strings.TrimSpace(fmt.Sprint(item)))
			}
		}
		return out
	default:
		return nil
	}
}
