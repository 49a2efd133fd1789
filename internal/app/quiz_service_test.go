package app_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/domain"
	"quiz-retry-service/internal/infra/memory"
)

func TestStartAndFinishQuiz(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if err := service.Start(ctx, "s1", "mixed"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	working, err := service.WorkingQuiz(ctx, "s1")
	if err != nil {
		t.Fatalf("working quiz: %v", err)
	}

	for {
		view, err := service.Current(ctx, "s1")
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		if view.Done {
			break
		}
		q := findQuestion(t, working, view.Question.ID)
		if _, err := service.SubmitAnswer(ctx, "s1", rightAnswer(q)); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if err := service.Advance(ctx, "s1"); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	res, err := service.Results(ctx, "s1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if res.Score != 4 || res.Total != 4 || res.Percentage != 100 || res.QuizID != "mixed" {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestOperationsRequireSelectedQuiz(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	_, err := service.Current(ctx, "nobody")
	if !errors.Is(err, domain.ErrMissingQuizData) || !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected missing quiz data, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "nobody", domain.SingleAnswer("0")); !errors.Is(err, domain.ErrMissingQuizData) {
		t.Fatalf("expected missing quiz data on submit, got %v", err)
	}
	if err := service.Advance(ctx, "nobody"); !errors.Is(err, domain.ErrMissingQuizData) {
		t.Fatalf("expected missing quiz data on advance, got %v", err)
	}
	if _, err := service.Results(ctx, "nobody"); !errors.Is(err, domain.ErrMissingQuizData) {
		t.Fatalf("expected missing quiz data on results, got %v", err)
	}
}

func TestStartRejectsUnknownAndInvalidQuizzes(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if err := service.Start(ctx, "s1", "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if err := service.Start(ctx, "s1", "essay"); !errors.Is(err, domain.ErrUnsupportedQuestionType) {
		t.Fatalf("expected unsupported question type, got %v", err)
	}
	if err := service.Start(ctx, "s1", "dangling"); !errors.Is(err, domain.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
	if _, err := service.Current(ctx, "s1"); !errors.Is(err, domain.ErrMissingQuizData) {
		t.Fatalf("failed start must not leave a session behind, got %v", err)
	}
}

func TestRestartKeepsOrClearsQuiz(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if err := service.Start(ctx, "s1", "mixed"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "s1", domain.SingleAnswer("wrong")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.Advance(ctx, "s1"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if err := service.Restart(ctx, "s1", true); err != nil {
		t.Fatalf("restart keep: %v", err)
	}
	view, err := service.Current(ctx, "s1")
	if err != nil {
		t.Fatalf("current after keep: %v", err)
	}
	if view.Phase != "Main" || view.QuestionNum != 1 {
		t.Fatalf("expected a fresh run, got %+v", view)
	}
	res, _ := service.Results(ctx, "s1")
	if res.QuizID != "mixed" || len(res.Answers) != 0 || res.Score != 0 {
		t.Fatalf("expected a reset run of the same quiz, got %+v", res)
	}

	if err := service.Restart(ctx, "s1", false); err != nil {
		t.Fatalf("restart clear: %v", err)
	}
	if _, err := service.Current(ctx, "s1"); !errors.Is(err, domain.ErrMissingQuizData) {
		t.Fatalf("expected cleared session, got %v", err)
	}
}

func TestConcurrentSubmitsScoreOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	if err := service.Start(ctx, "s1", "mixed"); err != nil {
		t.Fatalf("start: %v", err)
	}
	working, _ := service.WorkingQuiz(ctx, "s1")
	view, _ := service.Current(ctx, "s1")
	answer := rightAnswer(findQuestion(t, working, view.Question.ID))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.SubmitAnswer(ctx, "s1", answer); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}
	wg.Wait()

	res, _ := service.Results(ctx, "s1")
	if res.Score != 1 || len(res.Answers) != 1 {
		t.Fatalf("expected one scored answer, got %+v", res)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	if err := service.Start(ctx, "a", "mixed"); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := service.Start(ctx, "b", "mixed"); err != nil {
		t.Fatalf("start b: %v", err)
	}
	if err := service.Advance(ctx, "a"); err != nil {
		t.Fatalf("advance a: %v", err)
	}

	viewA, _ := service.Current(ctx, "a")
	viewB, _ := service.Current(ctx, "b")
	if viewA.QuestionNum != 2 || viewB.QuestionNum != 1 {
		t.Fatalf("sessions leaked into each other: a=%+v b=%+v", viewA, viewB)
	}
	if store.Len() != 2 {
		t.Fatalf("expected two stored sessions, got %d", store.Len())
	}
}

func TestRetryCapFromConfig(t *testing.T) {
	ctx := context.Background()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(testQuizzes()), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(0), quizRepo, app.ServiceConfig{
		MaxRetryRounds: 1,
		Rand:           func() *rand.Rand { return seeded(5) },
	})
	if err := service.Start(ctx, "s1", "mixed"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Answer everything wrong: one retry round, then the cap ends the run.
	rounds := 0
	for {
		view, err := service.Current(ctx, "s1")
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		if view.Done {
			break
		}
		if view.QuestionNum == 1 {
			rounds++
		}
		if _, err := service.SubmitAnswer(ctx, "s1", domain.SingleAnswer("wrong")); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if err := service.Advance(ctx, "s1"); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if rounds != 2 {
		t.Fatalf("expected main pass plus one retry round, got %d passes", rounds)
	}
}

func newTestService() (*app.QuizService, *memory.SessionStore) {
	store := memory.NewSessionStore(0)
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(testQuizzes()), time.Minute)
	return app.NewQuizService(store, quizRepo, app.ServiceConfig{
		Rand: func() *rand.Rand { return seeded(9) },
	}), store
}

func testQuizzes() map[string]domain.Quiz {
	essay := domain.Quiz{ID: "essay", Questions: []domain.Question{{ID: "e1", Text: "Discuss.", Type: "essay", CorrectAnswer: []string{"x"}}}}
	dangling := domain.Quiz{ID: "dangling", Questions: []domain.Question{{
		ID:            "d1",
		Text:          "?",
		Type:          domain.MultipleChoice,
		Options:       []domain.Option{{Key: "a", Text: "1"}},
		CorrectAnswer: []string{"b"},
	}}}
	return map[string]domain.Quiz{
		"mixed":    mixedQuiz(),
		"essay":    essay,
		"dangling": dangling,
	}
}

func findQuestion(t *testing.T, quiz domain.Quiz, id string) domain.Question {
	t.Helper()
	for _, q := range quiz.Questions {
		if q.ID == id {
			return q
		}
	}
	t.Fatalf("question %q not found", id)
	return domain.Question{}
}
