package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-retry-service/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type meta struct {
	RequestID string `json:"request_id,omitempty"`
}

type envelope struct {
	OK    bool          `json:"ok"`
	Data  interface{}   `json:"data,omitempty"`
	Error *errorPayload `json:"error,omitempty"`
	Meta  meta          `json:"meta"`
}

func writeOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeEnvelope(w, r, status, envelope{Error: &errorPayload{Code: code, Message: msg}})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, res envelope) {
	res.Meta.RequestID = middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

// classify maps service errors onto an HTTP status and a stable error code.
// Codes tell the client where to go next: select_quiz sends it back to the selector,
// quiz_complete to the results page.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrMissingQuizData), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusConflict, "select_quiz"
	case errors.Is(err, domain.ErrQuizAlreadyComplete):
		return http.StatusConflict, "quiz_complete"
	case errors.Is(err, domain.ErrSessionConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUnsupportedQuestionType):
		return http.StatusUnprocessableEntity, "unsupported_question_type"
	case errors.Is(err, domain.ErrDataIntegrity):
		return http.StatusUnprocessableEntity, "data_integrity"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
