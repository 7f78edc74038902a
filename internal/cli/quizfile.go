package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quiz-scoring-service/internal/domain"
)

// readDocument parses a JSON or YAML file into plain JSON-compatible values.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return stringKeys(doc), nil
}

// stringKeys rewrites YAML mappings with non-string keys so the tree can be re-encoded as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = stringKeys(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = stringKeys(item)
		}
		return t
	default:
		return v
	}
}

// loadQuizzes reads a file holding either one quiz document or a list of them.
func loadQuizzes(path string) ([]domain.Quiz, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if _, single := doc.(map[string]any); single {
		doc = []any{doc}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, fmt.Errorf("decode quizzes from %s: %w", path, err)
	}
	return quizzes, nil
}

func loadAnswers(path string) (domain.AnswerSheet, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return domain.NewAnswerSheet(doc), nil
}

func pickQuiz(quizzes []domain.Quiz, id string) (domain.Quiz, error) {
	if len(quizzes) == 0 {
		return domain.Quiz{}, fmt.Errorf("no quizzes in file")
	}
	if id == "" {
		return quizzes[0], nil
	}
	for _, q := range quizzes {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, id)
}
