package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"wrongnote-service/internal/app"
	"wrongnote-service/internal/domain"
	"wrongnote-service/internal/infra/remote"
)

type WSHandler struct {
	service  *app.NoteService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.NoteService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type selectCategoryPayload struct {
	Tag string `json:"tag"`
}

type changePagePayload struct {
	Page int `json:"page"`
}

type selectProblemPayload struct {
	ProblemID int64 `json:"problemId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message      string `json:"message"`
	Unauthorized bool   `json:"unauthorized,omitempty"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Message:      err.Error(),
		Unauthorized: domain.IsUnauthorized(err),
	}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the note use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("memberId")
	if memberID == "" {
		http.Error(w, "missing memberId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		ctx = remote.WithAccessToken(ctx, token)
	}

	session, err := h.service.Open(ctx, memberID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer h.service.Close(memberID)

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "member_id", memberID, "error", err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "opened", Payload: session.View()}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.handle(ctx, session, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, session *app.Session, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "selectCategory":
		var payload selectCategoryPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid selectCategory payload"))
		}
		if _, err := session.SelectCategory(payload.Tag); err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "view", Payload: session.View()}
	case "changePage":
		var payload changePagePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid changePage payload"))
		}
		session.ChangePage(payload.Page)
		return outboundMessage[any]{Type: "view", Payload: session.View()}
	case "selectProblem":
		var payload selectProblemPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(errors.New("invalid selectProblem payload"))
		}
		if _, err := session.SelectProblem(ctx, payload.ProblemID); err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "view", Payload: session.View()}
	case "deselect":
		session.Deselect()
		return outboundMessage[any]{Type: "view", Payload: session.View()}
	case "detail":
		detail, err := session.Detail(ctx)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "detail", Payload: detail}
	default:
		return errorMessage(errors.New("unsupported message type"))
	}
}
