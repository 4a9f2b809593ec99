package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"readiness-sync/internal/websocket"
	"readiness-sync/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	secret   string
	upgrader ws.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, secret string, readBuffer, writeBuffer int, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		manager: manager,
		secret:  secret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.Named("ws"),
	}
}

// HandleConnection subscribes a client to the change feed. A token is
// required only when the proxy has a signing secret.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	advisor := "anonymous"

	if h.secret != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if token == "" {
			http.Error(w, "missing authorization token", http.StatusUnauthorized)
			return
		}

		claims, err := jwt.ValidateToken(token, h.secret)
		if err != nil {
			h.logger.Debug("token validation failed", zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		advisor = claims.Advisor
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.NewString(), advisor, conn, h.manager)
	if !h.manager.Attach(client) {
		h.logger.Debug("feed hub stopped, dropping subscriber", zap.String("advisor", advisor))
		conn.Close()
	}
}

// FeedMessageHandler answers pings from feed subscribers. The hub drops any
// other subscriber traffic before it gets here.
type FeedMessageHandler struct {
	logger *zap.Logger
}

func NewFeedMessageHandler(logger *zap.Logger) *FeedMessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedMessageHandler{logger: logger}
}

func (h *FeedMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		pong, err := websocket.NewMessage(websocket.TypePong, nil)
		if err != nil {
			return err
		}
		pongBytes, _ := json.Marshal(pong)
		select {
		case client.Send <- pongBytes:
		default:
		}
	default:
		h.logger.Debug("unexpected message from subscriber", zap.String("type", string(msg.Type)))
	}
	return nil
}
