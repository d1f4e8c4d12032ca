package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/openblog/backend/internal/auth"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
)

// Handler upgrades authenticated connections and wires them to the hub.
type Handler struct {
	hub         *Hub
	authService *auth.Service
	upgrader    websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. Origins are checked
// against the same allowlist CORS uses.
func NewHandler(hub *Hub, authService *auth.Service, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		hub:         hub,
		authService: authService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowed[origin]
			},
		},
	}
}

// ServeWS handles WebSocket requests from clients. The browser sends
// the session cookie with the upgrade request, so auth works the same
// as any other endpoint.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())

	cookie, err := r.Cookie(auth.AccessCookieName)
	if err != nil || cookie.Value == "" {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	if _, err := h.authService.VerifyAccess(cookie.Value); err != nil {
		if err == auth.ErrTokenExpired {
			apperrors.WriteError(w, requestID, apperrors.TokenExpired())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.InvalidToken("invalid access token"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetHub returns the hub instance for external access.
func (h *Handler) GetHub() *Hub {
	return h.hub
}
