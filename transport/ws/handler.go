package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roomcast/auth"
	"roomcast/domain"
	"roomcast/services"
)

// Handler owns the upgrade endpoint. Authentication happens before the
// upgrade: a request without a valid credential never becomes a socket.
type Handler struct {
	authenticator *auth.Authenticator
	router        *Router
	rooms         services.IRoomService
	upgrader      websocket.Upgrader
	sendBuffer    int
	log           *slog.Logger
}

func NewHandler(
	authenticator *auth.Authenticator,
	router *Router,
	rooms services.IRoomService,
	sendBuffer int,
	log *slog.Logger,
) *Handler {
	return &Handler{
		authenticator: authenticator,
		router:        router,
		rooms:         rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Token auth makes the connection safe regardless of origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		log:        log,
	}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/ws", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	principal, err := h.authenticator.Authenticate(c.Request.Context(), auth.HandshakeCredentials{Request: c.Request})
	if err != nil {
		h.log.Info("Rejected websocket handshake", "remote", c.ClientIP(), "err", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("Websocket upgrade failed", "remote", c.ClientIP(), "err", err)
		return
	}

	connID := domain.ConnID(uuid.New().String())
	client := NewClient(connID, principal, conn, h.sendBuffer, h.log)
	h.log.Info("Websocket connected", "conn_id", connID, "user_id", principal.UserID)

	done := make(chan struct{})
	go client.WritePump(done)

	// The read pump runs on the handler goroutine and handles each frame
	// before reading the next, keeping the connection's operations ordered.
	client.ReadPump(c.Request.Context(), func(ctx context.Context, env Envelope) {
		h.router.Handle(ctx, client, env)
	})

	close(done)
	affected := h.rooms.Disconnect(connID)
	h.log.Info("Websocket disconnected",
		"conn_id", connID,
		"user_id", principal.UserID,
		"rooms_left", len(affected))
}
