package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"constitution-quest-service/internal/app"
	"constitution-quest-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service) *WSHandler {
	return &WSHandler{
		service: service,
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

type startPayload struct {
	SessionID string              `json:"sessionId"`
	Kind      domain.ActivityKind `json:"kind"`
	QuizID    string              `json:"quizId"`
}

type completePayload struct {
	SessionID   string             `json:"sessionId"`
	Performance domain.Performance `json:"performance"`
}

type sessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

type rewardPayload struct {
	SessionID string               `json:"sessionId"`
	Status    app.CompletionStatus `json:"status"`
	Result    *domain.RewardResult `json:"result,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// session and completion use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	var forwarders sync.WaitGroup
	var cancelsMu sync.Mutex
	var cancels []func()

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// keep draining so producers never block on a dead conn
				for range send {
				}
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid start payload")
				continue
			}
			session, err := h.service.StartSession(r.Context(), payload.SessionID, userID, payload.Kind, payload.QuizID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}

			celebrations, cancel, err := h.service.Subscribe(r.Context(), session.ID())
			if err == nil {
				cancelsMu.Lock()
				cancels = append(cancels, cancel)
				cancelsMu.Unlock()
				forwarders.Add(1)
				go func() {
					defer forwarders.Done()
					for c := range celebrations {
						send <- outboundMessage[any]{Type: "celebration", Payload: c}
					}
				}()
			}
			send <- outboundMessage[any]{Type: "started", Payload: sessionRefPayload{SessionID: session.ID()}}

		case "answer":
			var payload app.AnswerEvent
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid answer payload")
				continue
			}
			outcome, err := h.service.SubmitAnswer(r.Context(), payload)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: outcome}

		case "complete":
			var payload completePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid complete payload")
				continue
			}
			outcome := h.service.SubmitCompletion(r.Context(), app.CompletionEvent{
				SessionID:   payload.SessionID,
				Performance: payload.Performance,
			})
			if outcome.Err != nil && outcome.Result == nil {
				send <- errMsg(outcome.Err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "reward", Payload: rewardPayload{
				SessionID: payload.SessionID,
				Status:    outcome.Status,
				Result:    outcome.Result,
			}}

		case "abandon":
			var payload sessionRefPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid abandon payload")
				continue
			}
			if err := h.service.Abandon(r.Context(), payload.SessionID); err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "abandoned", Payload: payload}

		case "retrySave":
			var payload sessionRefPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid retrySave payload")
				continue
			}
			if err := h.service.RetrySave(r.Context(), payload.SessionID); err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "saved", Payload: payload}

		default:
			send <- errMsg("unsupported message type")
		}
	}

	cancelsMu.Lock()
	for _, cancel := range cancels {
		cancel()
	}
	cancelsMu.Unlock()
	forwarders.Wait()
	close(send)
	<-writerDone
}

func errMsg(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
