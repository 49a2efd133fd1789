package http

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/domain"
	"quiz-retry-service/internal/infra/memory"
)

func TestQuizFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()
	client := newClient(t)

	var list []domain.QuizSummary
	if status := call(t, client, http.MethodGet, server.URL+"/api/quizzes", nil, &list); status != http.StatusOK {
		t.Fatalf("list status %d", status)
	}
	if len(list) != 1 || list[0].ID != "quiz-1" {
		t.Fatalf("unexpected catalog %+v", list)
	}

	if status := call(t, client, http.MethodPost, server.URL+"/api/quizzes/quiz-1/select", nil, nil); status != http.StatusOK {
		t.Fatalf("select status %d", status)
	}

	var working domain.Quiz
	call(t, client, http.MethodGet, server.URL+"/api/quiz/data", nil, &working)
	answers := correctAnswers(working)

	// Main pass: miss the first question shown, get the second right.
	var view domain.QuestionView
	call(t, client, http.MethodGet, server.URL+"/api/quiz/current", nil, &view)
	if view.Phase != "Main" || view.QuestionNum != 1 || view.TotalQuestions != 2 {
		t.Fatalf("unexpected first view %+v", view)
	}
	missedID := view.Question.ID

	var verdict domain.Verdict
	call(t, client, http.MethodPost, server.URL+"/api/quiz/answer", map[string]any{"answer": wrongAnswer(working, missedID)}, &verdict)
	if verdict.IsCorrect {
		t.Fatalf("expected wrong verdict")
	}
	call(t, client, http.MethodPost, server.URL+"/api/quiz/next", nil, nil)

	call(t, client, http.MethodGet, server.URL+"/api/quiz/current", nil, &view)
	call(t, client, http.MethodPost, server.URL+"/api/quiz/answer", map[string]any{"answer": answers[view.Question.ID]}, &verdict)
	if !verdict.IsCorrect {
		t.Fatalf("expected correct verdict, got %+v", verdict)
	}
	call(t, client, http.MethodPost, server.URL+"/api/quiz/next", nil, nil)

	// Retry round over the missed question.
	call(t, client, http.MethodGet, server.URL+"/api/quiz/current", nil, &view)
	if view.Phase != "Retry #1" || view.Question.ID != missedID || view.TotalQuestions != 1 {
		t.Fatalf("expected retry of %s, got %+v", missedID, view)
	}
	call(t, client, http.MethodPost, server.URL+"/api/quiz/answer", map[string]any{"answer": answers[missedID]}, &verdict)
	call(t, client, http.MethodPost, server.URL+"/api/quiz/next", nil, nil)

	call(t, client, http.MethodGet, server.URL+"/api/quiz/current", nil, &view)
	if !view.Done {
		t.Fatalf("expected done view, got %+v", view)
	}

	// Answering after completion is a benign conflict.
	if status := call(t, client, http.MethodPost, server.URL+"/api/quiz/answer", map[string]any{"answer": "0"}, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 after completion, got %d", status)
	}

	var results domain.Results
	call(t, client, http.MethodGet, server.URL+"/api/quiz/results", nil, &results)
	if results.Score != 1 || results.Total != 2 || results.Percentage != 50 || results.RetryRound != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(results.Answers) != 2 {
		t.Fatalf("expected two log entries, got %+v", results.Answers)
	}
}

func TestErrorsMapToCodes(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()
	client := newClient(t)

	env := rawCall(t, client, http.MethodGet, server.URL+"/api/quiz/current", nil)
	if env.status != http.StatusConflict || env.Error == nil || env.Error.Code != "select_quiz" {
		t.Fatalf("expected select_quiz conflict, got %d %+v", env.status, env.Error)
	}

	env = rawCall(t, client, http.MethodPost, server.URL+"/api/quizzes/nope/select", nil)
	if env.status != http.StatusNotFound || env.Error.Code != "not_found" {
		t.Fatalf("expected not_found, got %d %+v", env.status, env.Error)
	}

	env = rawCall(t, client, http.MethodPost, server.URL+"/api/quiz/restart?keep=true", nil)
	if env.status != http.StatusConflict || env.Error.Code != "select_quiz" {
		t.Fatalf("expected restart without quiz to ask for selection, got %d %+v", env.status, env.Error)
	}
}

func TestResponsesAreNotCached(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/quizzes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Cache-Control") == "" || resp.Header.Get("Expires") == "" {
		t.Fatalf("expected no-cache headers, got %v", resp.Header)
	}
}

type testEnvelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`

	status int
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(0), quizRepo, app.ServiceConfig{
		Rand: func() *rand.Rand { return rand.New(rand.NewSource(7)) },
	})
	cookies := NewSessionCookies([]byte("test-secret-test-secret-test-sec"), false, nil)
	return httptest.NewServer(NewRouter(service, cookies, nil))
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func call(t *testing.T, client *http.Client, method, url string, body any, out any) int {
	t.Helper()
	env := rawCall(t, client, method, url, body)
	if out != nil && env.OK {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return env.status
}

func rawCall(t *testing.T, client *http.Client, method, url string, body any) testEnvelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	env.status = resp.StatusCode
	return env
}

func correctAnswers(quiz domain.Quiz) map[string]string {
	out := make(map[string]string, len(quiz.Questions))
	for _, q := range quiz.Questions {
		out[q.ID] = q.CorrectAnswer[0]
	}
	return out
}

func wrongAnswer(quiz domain.Quiz, questionID string) string {
	for _, q := range quiz.Questions {
		if q.ID != questionID {
			continue
		}
		for _, opt := range q.Options {
			if opt.Key != q.CorrectAnswer[0] {
				return opt.Key
			}
		}
	}
	return ""
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "What is 2 + 2?",
					Type:          domain.MultipleChoice,
					Options:       []domain.Option{{Key: "a", Text: "3"}, {Key: "b", Text: "4"}, {Key: "c", Text: "5"}},
					CorrectAnswer: []string{"b"},
				},
				{
					ID:            "q2",
					Text:          "What is 3 * 3?",
					Type:          domain.MultipleChoice,
					Options:       []domain.Option{{Key: "a", Text: "6"}, {Key: "b", Text: "9"}, {Key: "c", Text: "12"}},
					CorrectAnswer: []string{"b"},
				},
			},
		},
	}
}
