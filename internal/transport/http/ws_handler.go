package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-arena/internal/app"
	"quiz-arena/internal/domain"
)

// WSHandler streams session snapshots to viewers. Contestant viewers send
// heartbeats over the same socket to stay marked as connected.
type WSHandler struct {
	sessions *app.SessionService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(sessions *app.SessionService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes the session on every stored change.
// The stream ends when the session is deleted or the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	contestantID := r.URL.Query().Get("contestantId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel, err := h.sessions.Watch(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	if contestantID != "" {
		if err := h.sessions.Heartbeat(ctx, sessionID, contestantID); err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer goroutine: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case session, ok := <-updates:
				if !ok {
					select {
					case send <- outboundMessage[any]{Type: "closed", Payload: errorPayload{Message: domain.ErrSessionNotFound.Error()}}:
					case <-closeSignals:
					case <-writerDone:
					}
					// unblock the reader; queued messages are still flushed
					_ = conn.SetReadDeadline(time.Now())
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: session}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(message string) bool {
		return enqueue(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}
read:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "heartbeat":
			if contestantID == "" {
				if !reply("heartbeat requires contestantId") {
					break read
				}
				continue
			}
			if err := h.sessions.Heartbeat(ctx, sessionID, contestantID); err != nil {
				if !reply(err.Error()) {
					break read
				}
			}
		default:
			if !reply("unsupported message type") {
				break read
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer. It reports false once the writer has
// stopped, so the caller never blocks on a full buffer nobody drains.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}
