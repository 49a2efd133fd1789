package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/domain"
	"quiz-retry-service/internal/logger"
	"github.com/go-chi/chi/v5"
)

// QuizHandler exposes the quiz use cases as a JSON API scoped to the caller's session cookie.
type QuizHandler struct {
	service *app.QuizService
	log     *logger.Logger
}

func NewQuizHandler(service *app.QuizService, log *logger.Logger) *QuizHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizHandler{service: service, log: log}
}

type answerRequest struct {
	Answer domain.Answer `json:"answer"`
}

func (h *QuizHandler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if quizzes == nil {
		quizzes = []domain.QuizSummary{}
	}
	writeOK(w, r, http.StatusOK, quizzes)
}

func (h *QuizHandler) Select(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	if err := h.service.Start(r.Context(), SessionID(r.Context()), quizID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, map[string]any{"success": true, "quizId": quizID})
}

func (h *QuizHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Current(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, view)
}

func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid answer payload")
		return
	}
	verdict, err := h.service.SubmitAnswer(r.Context(), SessionID(r.Context()), req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, verdict)
}

func (h *QuizHandler) Next(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Advance(r.Context(), SessionID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (h *QuizHandler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Results(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, res)
}

// Restart clears the run; ?keep=true reshuffles the same quiz instead of returning to the selector.
func (h *QuizHandler) Restart(w http.ResponseWriter, r *http.Request) {
	keep, _ := strconv.ParseBool(r.URL.Query().Get("keep"))
	if err := h.service.Restart(r.Context(), SessionID(r.Context()), keep); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, map[string]bool{"success": true, "kept": keep})
}

// Data returns the session's working (shuffled) quiz.
func (h *QuizHandler) Data(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.WorkingQuiz(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, quiz)
}

func (h *QuizHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("quiz request failed", "path", r.URL.Path, "session_id", SessionID(r.Context()), "error", err)
	}
	writeError(w, r, status, code, err.Error())
}
