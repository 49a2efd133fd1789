// Package catalog decodes quiz definition documents into domain quizzes.
//
// A document looks like:
//
//	{"title": "...", "questions": [
//	  {"question": "...", "type": "multiple_choice", "options": {"a": "...", "b": "..."}, "correct_answer": "a"},
//	  {"question": "...", "type": "multiple_answer", "options": {...}, "correct_answer": ["a", "c"]},
//	  {"question": "The capital of France is ___", "type": "fill_in_the_blank", "correct_answer": ["Paris"]}
//	]}
//
// type defaults to multiple_choice and options keep their document order.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"quiz-retry-service/internal/domain"
)

// Document is a stored, not yet decoded, quiz definition.
type Document struct {
	ID    string
	Title string
	Data  []byte
}

type rawQuiz struct {
	Title     string        `json:"title"`
	Questions []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Type          string          `json:"type"`
	Options       orderedOptions  `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
}

// Parse decodes and validates one quiz document. The quiz id is supplied by the caller
// (file name, table key); the title falls back to it.
func Parse(id string, data []byte) (domain.Quiz, error) {
	var raw rawQuiz
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode quiz %q: %w", id, err)
	}
	quiz := domain.Quiz{
		ID:        id,
		Title:     strings.TrimSpace(raw.Title),
		Questions: make([]domain.Question, 0, len(raw.Questions)),
	}
	if quiz.Title == "" {
		quiz.Title = id
	}

	for i, rq := range raw.Questions {
		q := domain.Question{
			ID:      rq.ID,
			Text:    rq.Question,
			Type:    domain.QuestionType(strings.TrimSpace(rq.Type)),
			Options: []domain.Option(rq.Options),
		}
		if q.ID == "" {
			q.ID = "q" + strconv.Itoa(i+1)
		}
		if q.Type == "" {
			q.Type = domain.MultipleChoice
		}
		correct, err := decodeStrings(rq.CorrectAnswer)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("%w: quiz %q question %q: %v", domain.ErrDataIntegrity, id, q.ID, err)
		}
		q.CorrectAnswer = correct
		if err := q.Validate(); err != nil {
			return domain.Quiz{}, fmt.Errorf("quiz %q: %w", id, err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz, nil
}

// Title extracts just the title of a document, falling back to id.
func Title(id string, data []byte) string {
	var head struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &head); err != nil || strings.TrimSpace(head.Title) == "" {
		return id
	}
	return strings.TrimSpace(head.Title)
}

// decodeStrings accepts a string, a number, or a list of either.
func decodeStrings(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, err := decodeScalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	s, err := decodeScalar(raw)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func decodeScalar(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unexpected answer value %s", string(raw))
	}
}

// orderedOptions decodes an options object keeping key order, or a plain list keyed "0","1",...
type orderedOptions []domain.Option

func (o *orderedOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		opts := make([]domain.Option, 0, len(items))
		for i, item := range items {
			text, err := decodeScalar(item)
			if err != nil {
				return err
			}
			opts = append(opts, domain.Option{Key: strconv.Itoa(i), Text: text})
		}
		*o = opts
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("options must be an object or a list")
	}
	var opts []domain.Option
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		text, err := decodeScalar(value)
		if err != nil {
			return err
		}
		opts = append(opts, domain.Option{Key: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = opts
	return nil
}
