package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeQuestionVariants(t *testing.T) {
	raw := `{
		"title": "mixed",
		"questions": [
			{"type": "mcq", "text": "a", "points": 1, "options": [{"text": "x"}, {"text": "y"}], "correct": "1"},
			{"type": "true_false", "text": "b", "points": 1, "correct": ["0"]},
			{"type": "checkbox", "text": "c", "points": 2, "options": [{"text": "x"}, {"text": "y"}], "correct": ["0", "oops"], "allowPartialCredit": true},
			{"type": "text_input", "text": "d", "points": 3, "correct": "Paris", "caseSensitive": true},
			{"type": "paragraph", "text": "e", "subQuestions": [{"type": "mcq", "text": "f", "points": 1, "correct": 0}]},
			{"type": "hotspot", "text": "g", "points": 2, "regions": [1, 2]}
		]
	}`
	var quiz Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(quiz.Questions) != 6 {
		t.Fatalf("expected 6 questions, got %d", len(quiz.Questions))
	}

	if q, ok := quiz.Questions[0].(*MCQ); !ok || q.Correct != 1 {
		t.Fatalf("unexpected mcq: %#v", quiz.Questions[0])
	}
	tf, ok := quiz.Questions[1].(*TrueFalse)
	if !ok || tf.Correct != 0 || len(tf.Options) != 2 || tf.Options[0].Text != "True" {
		t.Fatalf("unexpected true/false: %#v", quiz.Questions[1])
	}
	cb, ok := quiz.Questions[2].(*Checkbox)
	if !ok || !cb.AllowPartialCredit || len(cb.Correct) != 2 || cb.Correct[1] != InvalidIndex {
		t.Fatalf("unexpected checkbox: %#v", quiz.Questions[2])
	}
	text, ok := quiz.Questions[3].(*TextInput)
	if !ok || !text.CaseSensitive || len(text.Accepted) != 1 || text.Accepted[0] != "Paris" {
		t.Fatalf("unexpected text input: %#v", quiz.Questions[3])
	}
	para, ok := quiz.Questions[4].(*Paragraph)
	if !ok || len(para.SubQuestions) != 1 {
		t.Fatalf("unexpected paragraph: %#v", quiz.Questions[4])
	}
	if sub, ok := para.SubQuestions[0].(*MCQ); !ok || sub.Correct != 0 {
		t.Fatalf("unexpected sub-question: %#v", para.SubQuestions[0])
	}
	un, ok := quiz.Questions[5].(*Unsupported)
	if !ok || un.Type() != "hotspot" || un.Base().Points != 2 {
		t.Fatalf("unexpected unsupported: %#v", quiz.Questions[5])
	}
}

func TestDecodeQuestionAcceptsBareStringOptions(t *testing.T) {
	raw := `{"title":"t","questions":[{"type":"mcq","text":"x","options":["A","B","C"],"correct":"1","points":5}]}`
	var quiz Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	q, ok := quiz.Questions[0].(*MCQ)
	if !ok {
		t.Fatalf("expected mcq, got %#v", quiz.Questions[0])
	}
	if len(q.Options) != 3 || q.Options[0].Text != "A" || q.Options[2].Text != "C" || q.Correct != 1 || q.Points != 5 {
		t.Fatalf("unexpected mcq: %#v", q)
	}
}

func TestDecodeQuestionKeepsMistypedQuestionAsMalformed(t *testing.T) {
	raw := `{"title":"t","questions":[
		{"type":"mcq","text":"broken","points":3,"options":5,"correct":"0"},
		{"type":"text_input","text":"fine","points":1,"correct":["ok"]}
	]}`
	var quiz Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		t.Fatalf("one bad question must not fail the quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	bad, ok := quiz.Questions[0].(*Malformed)
	if !ok {
		t.Fatalf("expected malformed question, got %#v", quiz.Questions[0])
	}
	if bad.Type() != TypeMCQ || bad.Text != "broken" || bad.Points != 3 || bad.Reason == "" {
		t.Fatalf("unexpected malformed question: %#v", bad)
	}
	if _, ok := quiz.Questions[1].(*TextInput); !ok {
		t.Fatalf("expected text input to survive, got %#v", quiz.Questions[1])
	}

	out, err := EncodeQuestion(bad)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !json.Valid(out) || !strings.Contains(string(out), `"options":5`) {
		t.Fatalf("expected stored document back, got %s", out)
	}
}

func TestEncodeQuestionKeepsUnknownFields(t *testing.T) {
	raw := []byte(`{"type":"hotspot","text":"g","points":2,"regions":[1,2]}`)
	q, err := DecodeQuestion(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := EncodeQuestion(q)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("expected raw document back, got %s", out)
	}
}

func TestEncodeQuestionWritesIndexStrings(t *testing.T) {
	out, err := EncodeQuestion(&Checkbox{Prompt: Prompt{Text: "c", Points: 1}, Options: []Option{{Text: "x"}, {Text: "y"}}, Correct: []int{0, 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	correct, ok := doc["correct"].([]any)
	if !ok || len(correct) != 2 || correct[0] != "0" || correct[1] != "1" {
		t.Fatalf("unexpected correct field: %#v", doc["correct"])
	}
}

func TestAnswerSheetNormalisesKeys(t *testing.T) {
	var sheet AnswerSheet
	if err := json.Unmarshal([]byte(`{"0": "1", "2": ["0"], "x": "3", "-1": "0"}`), &sheet); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(sheet) != 2 {
		t.Fatalf("expected 2 usable keys, got %v", sheet)
	}
	if sheet[0] != "1" {
		t.Fatalf("unexpected answer for 0: %#v", sheet[0])
	}
	if _, ok := sheet[2]; !ok {
		t.Fatalf("expected key 2 to survive")
	}

	if err := json.Unmarshal([]byte(`["1", null, ["0"]]`), &sheet); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if len(sheet) != 3 || sheet[0] != "1" {
		t.Fatalf("unexpected array sheet: %v", sheet)
	}
}

func TestAnswerSheetDropsNonCanonicalKeys(t *testing.T) {
	for i := 0; i < 20; i++ {
		var sheet AnswerSheet
		if err := json.Unmarshal([]byte(`{"01": "0", "1": "1", " 1": "2", "+1": "3", "1 ": "4"}`), &sheet); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(sheet) != 1 || sheet[1] != "1" {
			t.Fatalf("expected only the canonical key to survive, got %v", sheet)
		}
	}
}

func TestParseIndex(t *testing.T) {
	cases := []struct {
		in   any
		want int
		ok   bool
	}{
		{"2", 2, true},
		{float64(1), 1, true},
		{1.5, 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{json.Number("3"), 3, true},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, c := range cases {
		got, ok := ParseIndex(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseIndex(%#v) = %d, %v; want %d, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
