package http

import (
	"encoding/json"
	"net/http"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/logger"
	"github.com/gorilla/websocket"
)

// WSHandler drives the same quiz session as the JSON API over a single websocket,
// so a client can answer and advance without a round trip per request.
type WSHandler struct {
	service  *app.QuizService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type restartPayload struct {
	Keep bool `json:"keep"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
// Messages from one connection are handled strictly in arrival order.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "session_id", sessionID, "error", err)
				// Unblocks ReadJSON so the read loop stops feeding send.
				conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "current":
			send <- h.currentMessage(r, sessionID)
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid_request", "invalid answer payload")
				continue
			}
			verdict, err := h.service.SubmitAnswer(ctx, sessionID, payload.Answer)
			if err != nil {
				send <- serviceErrorMessage(err)
				continue
			}
			send <- outboundMessage{Type: "verdict", Payload: verdict}
		case "next":
			if err := h.service.Advance(ctx, sessionID); err != nil {
				send <- serviceErrorMessage(err)
				continue
			}
			send <- h.currentMessage(r, sessionID)
		case "results":
			res, err := h.service.Results(ctx, sessionID)
			if err != nil {
				send <- serviceErrorMessage(err)
				continue
			}
			send <- outboundMessage{Type: "results", Payload: res}
		case "restart":
			var payload restartPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- errorMessage("invalid_request", "invalid restart payload")
					continue
				}
			}
			if err := h.service.Restart(ctx, sessionID, payload.Keep); err != nil {
				send <- serviceErrorMessage(err)
				continue
			}
			send <- outboundMessage{Type: "restarted", Payload: payload}
		default:
			send <- errorMessage("invalid_request", "unsupported message type")
		}
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) currentMessage(r *http.Request, sessionID string) outboundMessage {
	view, err := h.service.Current(r.Context(), sessionID)
	if err != nil {
		return serviceErrorMessage(err)
	}
	return outboundMessage{Type: "question", Payload: view}
}

func serviceErrorMessage(err error) outboundMessage {
	_, code := classify(err)
	return errorMessage(code, err.Error())
}

func errorMessage(code, msg string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Code: code, Message: msg}}
}
