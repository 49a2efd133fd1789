package app_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/domain"
	"quiz-retry-service/internal/infra/memory"
	infraredis "quiz-retry-service/internal/infra/redis"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// interleavingStore runs between once, inside the next Update, after the record was read
// and before it is written back.
type interleavingStore struct {
	app.SessionRepository
	between func()
}

func (s *interleavingStore) Update(ctx context.Context, sessionID string, fn func(rec *domain.SessionRecord) error) error {
	return s.SessionRepository.Update(ctx, sessionID, func(rec *domain.SessionRecord) error {
		if hook := s.between; hook != nil {
			s.between = nil
			hook()
		}
		return fn(rec)
	})
}

func newRedisService(mr *miniredis.Miniredis, wrap func(app.SessionRepository) app.SessionRepository) *app.QuizService {
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	var store app.SessionRepository = infraredis.NewSessionStore(client, time.Hour)
	if wrap != nil {
		store = wrap(store)
	}
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(testQuizzes()), time.Minute)
	return app.NewQuizService(store, quizRepo, app.ServiceConfig{
		Rand: func() *rand.Rand { return seeded(9) },
	})
}

func TestProcessesSharingRedisDoNotLoseWrites(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	hooked := &interleavingStore{}
	first := newRedisService(mr, func(store app.SessionRepository) app.SessionRepository {
		hooked.SessionRepository = store
		return hooked
	})
	second := newRedisService(mr, nil)

	if err := first.Start(ctx, "s1", "mixed"); err != nil {
		t.Fatalf("start: %v", err)
	}
	working, err := first.WorkingQuiz(ctx, "s1")
	if err != nil {
		t.Fatalf("working quiz: %v", err)
	}
	view, err := first.Current(ctx, "s1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	answer := rightAnswer(findQuestion(t, working, view.Question.ID))

	// The second process answers after the first one has read the session for Advance.
	hooked.between = func() {
		if _, err := second.SubmitAnswer(ctx, "s1", answer); err != nil {
			t.Errorf("submit from second process: %v", err)
		}
	}
	if err := first.Advance(ctx, "s1"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	res, err := second.Results(ctx, "s1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if res.Score != 1 || len(res.Answers) != 1 {
		t.Fatalf("answer from the second process was lost: %+v", res)
	}
	next, err := second.Current(ctx, "s1")
	if err != nil {
		t.Fatalf("current after advance: %v", err)
	}
	if next.QuestionNum != 2 {
		t.Fatalf("advance from the first process was lost: %+v", next)
	}
}

func TestConcurrentSubmitsAcrossProcesses(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	services := []*app.QuizService{newRedisService(mr, nil), newRedisService(mr, nil)}
	if err := services[0].Start(ctx, "s1", "mixed"); err != nil {
		t.Fatalf("start: %v", err)
	}
	working, _ := services[0].WorkingQuiz(ctx, "s1")
	view, _ := services[0].Current(ctx, "s1")
	answer := rightAnswer(findQuestion(t, working, view.Question.ID))

	done := make(chan error)
	for i := 0; i < 8; i++ {
		service := services[i%2]
		go func() {
			_, err := service.SubmitAnswer(ctx, "s1", answer)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("submit: %v", err)
		}
	}

	res, _ := services[1].Results(ctx, "s1")
	if res.Score != 1 || len(res.Answers) != 1 {
		t.Fatalf("expected one scored answer, got %+v", res)
	}
}
