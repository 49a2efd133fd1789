package app

import (
	"fmt"
	"strings"

	"quiz-retry-service/internal/domain"
)

// NoneSelected is shown when a submission resolves to no option.
const NoneSelected = "none selected"

// Evaluation is the judgement of one submitted answer.
type Evaluation struct {
	IsCorrect       bool
	CorrectDisplay  string
	SelectedDisplay string
}

// Evaluate judges answer against q. It has no side effects.
func Evaluate(q domain.Question, answer domain.Answer) (Evaluation, error) {
	switch q.Type {
	case domain.MultipleChoice:
		return evaluateMultipleChoice(q, answer), nil
	case domain.MultipleAnswer:
		return evaluateMultipleAnswer(q, answer), nil
	case domain.FillInTheBlank:
		return evaluateFillInTheBlank(q, answer), nil
	default:
		return Evaluation{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedQuestionType, q.Type)
	}
}

func evaluateMultipleChoice(q domain.Question, answer domain.Answer) Evaluation {
	correctKey := ""
	if len(q.CorrectAnswer) > 0 {
		correctKey = q.CorrectAnswer[0]
	}
	selected, ok := answer.Scalar()
	return Evaluation{
		IsCorrect:       ok && selected == correctKey,
		CorrectDisplay:  optionDisplay(q, []string{correctKey}),
		SelectedDisplay: optionDisplay(q, answer.Values),
	}
}

func evaluateMultipleAnswer(q domain.Question, answer domain.Answer) Evaluation {
	return Evaluation{
		IsCorrect:       sameSet(answer.Values, q.CorrectAnswer),
		CorrectDisplay:  optionDisplay(q, q.CorrectAnswer),
		SelectedDisplay: optionDisplay(q, answer.Values),
	}
}

func evaluateFillInTheBlank(q domain.Question, answer domain.Answer) Evaluation {
	selected, _ := answer.Scalar()
	isCorrect := false
	if len(answer.Values) == 1 {
		got := normalizeText(selected)
		for _, accepted := range q.CorrectAnswer {
			if normalizeText(accepted) == got {
				isCorrect = true
				break
			}
		}
	}
	return Evaluation{
		IsCorrect:       isCorrect,
		CorrectDisplay:  strings.Join(q.CorrectAnswer, ", "),
		SelectedDisplay: selected,
	}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameSet compares two key lists as sets; order and repeats do not matter.
func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, v := range a {
		left[v] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, v := range b {
		right[v] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for v := range left {
		if _, ok := right[v]; !ok {
			return false
		}
	}
	return true
}

// optionDisplay joins the texts of keys in option order. Unknown keys are skipped.
func optionDisplay(q domain.Question, keys []string) string {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	texts := make([]string, 0, len(keys))
	for _, opt := range q.Options {
		if _, ok := want[opt.Key]; ok {
			texts = append(texts, opt.Text)
		}
	}
	if len(texts) == 0 {
		return NoneSelected
	}
	return strings.Join(texts, ", ")
}
