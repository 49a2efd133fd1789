package app_test

import (
	"math/rand"
	"testing"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/domain"
)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func mixedQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "mixed",
		Title: "Mixed bag",
		Questions: []domain.Question{
			{
				ID:            "capital",
				Text:          "Capital of France?",
				Type:          domain.MultipleChoice,
				Options:       []domain.Option{{Key: "a", Text: "Berlin"}, {Key: "b", Text: "Paris"}, {Key: "c", Text: "Rome"}, {Key: "d", Text: "Madrid"}},
				CorrectAnswer: []string{"b"},
			},
			{
				ID:            "primes",
				Text:          "Which are prime?",
				Type:          domain.MultipleAnswer,
				Options:       []domain.Option{{Key: "a", Text: "2"}, {Key: "b", Text: "4"}, {Key: "c", Text: "5"}, {Key: "d", Text: "9"}},
				CorrectAnswer: []string{"a", "c"},
			},
			{
				ID:            "blank",
				Text:          "The sky is ___.",
				Type:          domain.FillInTheBlank,
				CorrectAnswer: []string{"blue", "Azure"},
			},
			{
				ID:            "tf",
				Text:          "Go has generics.",
				Type:          domain.MultipleChoice,
				Options:       []domain.Option{{Key: "t", Text: "True"}, {Key: "f", Text: "False"}},
				CorrectAnswer: []string{"t"},
			},
		},
	}
}

// currentQuestion returns the working-quiz question the session is positioned on.
func currentQuestion(t *testing.T, s *app.Session) domain.Question {
	t.Helper()
	view, err := s.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if view.Done {
		t.Fatalf("expected a question, session is done")
	}
	for _, q := range s.Quiz().Questions {
		if q.ID == view.Question.ID {
			return q
		}
	}
	t.Fatalf("question %q not in working quiz", view.Question.ID)
	return domain.Question{}
}

func rightAnswer(q domain.Question) domain.Answer {
	if q.Type == domain.MultipleAnswer {
		return domain.ListAnswer(q.CorrectAnswer...)
	}
	return domain.SingleAnswer(q.CorrectAnswer[0])
}

func wrongAnswer(q domain.Question) domain.Answer {
	if q.Type == domain.MultipleAnswer {
		return domain.ListAnswer()
	}
	return domain.SingleAnswer("definitely wrong")
}

// answerAndAdvance answers the current question and moves on, returning the question's id.
func answerAndAdvance(t *testing.T, s *app.Session, correct bool) string {
	t.Helper()
	q := currentQuestion(t, s)
	answer := wrongAnswer(q)
	if correct {
		answer = rightAnswer(q)
	}
	verdict, err := s.Submit(answer)
	if err != nil {
		t.Fatalf("submit %s: %v", q.ID, err)
	}
	if verdict.IsCorrect != correct {
		t.Fatalf("question %s: expected correct=%v, got %+v", q.ID, correct, verdict)
	}
	if err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	return q.ID
}
