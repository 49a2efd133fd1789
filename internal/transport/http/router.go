package http

import (
	"net/http"
	"time"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the JSON API and the websocket endpoint.
func NewRouter(service *app.QuizService, cookies *SessionCookies, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	quiz := NewQuizHandler(service, log)
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(s chi.Router) {
		s.Use(cookies.Middleware)

		s.Get("/ws", ws.ServeWS)
		s.Route("/api", func(api chi.Router) {
			api.Get("/quizzes", quiz.ListQuizzes)
			api.Post("/quizzes/{quizID}/select", quiz.Select)

			api.Get("/quiz/current", quiz.Current)
			api.Post("/quiz/answer", quiz.Answer)
			api.Post("/quiz/next", quiz.Next)
			api.Get("/quiz/results", quiz.Results)
			api.Post("/quiz/restart", quiz.Restart)
			api.Get("/quiz/data", quiz.Data)
		})
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
			)
		})
	}
}
