// Package server is the HTTP surface: account endpoints, room management,
// message history and search, plus the websocket upgrade route.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roomcast/auth"
	"roomcast/services"
	"roomcast/transport/ws"
)

type Server struct {
	engine *gin.Engine
	addr   string
	log    *slog.Logger
}

func NewServer(
	addr string,
	authenticator *auth.Authenticator,
	authService services.IAuthService,
	roomService services.IRoomService,
	messageService services.IMessageService,
	wsHandler *ws.Handler,
	log *slog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	authHandlers := &authHandlers{service: authService, log: log}
	engine.POST("/api/register", authHandlers.register)
	engine.POST("/api/login", authHandlers.login)

	protected := engine.Group("/api", requirePrincipal(authenticator))
	roomHandlers := &roomHandlers{service: roomService, log: log}
	protected.POST("/rooms", roomHandlers.create)
	protected.GET("/rooms", roomHandlers.list)
	protected.DELETE("/rooms/:id", roomHandlers.remove)
	protected.GET("/rooms/:id/users", roomHandlers.liveMembers)

	messageHandlers := &messageHandlers{service: messageService, log: log}
	protected.GET("/rooms/:id/messages", messageHandlers.history)
	protected.GET("/rooms/:id/search", messageHandlers.search)
	protected.PATCH("/messages/:id", messageHandlers.edit)
	protected.DELETE("/messages/:id", messageHandlers.remove)

	wsHandler.Register(engine)

	return &Server{engine: engine, addr: addr, log: log}
}

// Run serves until the context is canceled, then drains in-flight
// requests. Open websockets are closed by their own pumps when the
// listener goes away.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Handler exposes the routing tree, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}
