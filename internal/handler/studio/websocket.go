package studio

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/affirmation-studio/backend/internal/logging"
	"github.com/zhouzirui/affirmation-studio/backend/internal/model/apperr"
	studioService "github.com/zhouzirui/affirmation-studio/backend/internal/service/studio"
	"github.com/zhouzirui/affirmation-studio/backend/pkg/utils"
)

const (
	readTimeout   = 60 * time.Second
	writeTimeout  = 10 * time.Second
	pingInterval  = 54 * time.Second
	sseKeepAlive  = 15 * time.Second
	maxInboundMsg = 4 << 10
)

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
}

// subscribe checks the session and returns its current view together with
// a live view subscription.
func (h *Handler) subscribe(r *http.Request) (studioService.View, <-chan studioService.View, func(), error) {
	broker := h.ctrl.Broker()
	if broker == nil {
		return studioService.View{}, nil, nil, apperr.New(apperr.Configuration, "subscribe", "view push unavailable")
	}

	sessionID := chi.URLParam(r, "sessionID")
	view, err := h.ctrl.View(r.Context(), sessionID)
	if err != nil {
		return studioService.View{}, nil, nil, err
	}
	views, cancel := broker.Subscribe(sessionID)
	return view, views, cancel, nil
}

// handleWebSocket 推送会话视图，客户端只读
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	initial, views, cancelSub, err := h.subscribe(r)
	if err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}
	defer cancelSub()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).WithPrefix("websocket").Warn("upgrade failed", "err", err)
		return
	}
	h.conns.AddConnection(sessionID, conn)
	defer h.conns.RemoveConnection(sessionID, conn)

	logger := logging.FromContext(r.Context()).WithPrefix("websocket")
	logger.Info("connection opened", "session", sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadLimit(maxInboundMsg)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go readLoop(conn, cancel)

	if err := writeView(conn, sessionID, initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("connection closed", "session", sessionID)
			return
		case view, ok := <-views:
			if !ok {
				closeConn(conn, "session closed")
				return
			}
			if view.Version < initial.Version {
				continue
			}
			if err := writeView(conn, sessionID, view); err != nil {
				logger.Debug("write failed", "session", sessionID, "err", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed and a
// closed peer is noticed.
func readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func writeView(conn *websocket.Conn, sessionID string, view studioService.View) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(outgoingMessage{
		Type:      "view",
		SessionID: sessionID,
		Data:      view,
		Timestamp: time.Now().Unix(),
	})
}

// handleEvents 以SSE方式推送会话视图，供不支持WebSocket的客户端使用
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	initial, views, cancelSub, err := h.subscribe(r)
	if err != nil {
		utils.RespondAppError(w, err, nil)
		return
	}
	defer cancelSub()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "view", initial); err != nil {
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": initial.SessionID})
				return
			}
			if view.Version < initial.Version {
				continue
			}
			if err := utils.SendSSEEvent(w, flusher, "view", view); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}
