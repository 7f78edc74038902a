package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AnswerSheet maps a question index to the learner's raw payload.
// Keys are normalised on ingestion; payloads are interpreted by the scorer per question type.
type AnswerSheet map[int]any

// NewAnswerSheet normalises any decoded answers mapping (JSON object, YAML mapping, or an array
// indexed by position). Keys that are not canonical non-negative integers are dropped.
func NewAnswerSheet(raw any) AnswerSheet {
	sheet := AnswerSheet{}
	switch t := raw.(type) {
	case AnswerSheet:
		for k, v := range t {
			sheet[k] = v
		}
	case map[string]any:
		for k, v := range t {
			if idx, ok := parseKey(k); ok {
				sheet[idx] = v
			}
		}
	case map[any]any:
		for k, v := range t {
			if idx, ok := parseKey(k); ok {
				sheet[idx] = v
			}
		}
	case map[int]any:
		for k, v := range t {
			if k >= 0 {
				sheet[k] = v
			}
		}
	case []any:
		for i, v := range t {
			sheet[i] = v
		}
	}
	return sheet
}

// UnmarshalJSON accepts either an object keyed by question index or an array.
func (s *AnswerSheet) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}
	*s = NewAnswerSheet(raw)
	return nil
}

// MarshalJSON writes the sheet with string keys.
func (s AnswerSheet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[strconv.Itoa(k)] = v
	}
	return json.Marshal(out)
}

func parseKey(k any) (int, bool) {
	switch t := k.(type) {
	case string:
		// Keys must be canonical: "01", "+1" and " 1" are dropped.
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 || strconv.Itoa(n) != t {
			return 0, false
		}
		return n, true
	case int:
		return t, t >= 0
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	default:
		return 0, false
	}
}
