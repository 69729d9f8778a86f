package adminhandler

import (
	"chamber/internal/server"
	"chamber/internal/transport"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const queryTimeout = 2 * time.Second

// Chamber is the part of the broadcast server the admin surface needs.
type Chamber interface {
	Sessions(ctx context.Context) ([]server.Session, error)
	Admit(ctx context.Context, stream transport.Stream) *server.Handle
}

type Handler struct {
	chamber      Chamber
	rootCtx      context.Context
	upgrader     websocket.Upgrader
	maxFrame     int
	writeTimeout time.Duration
}

// New builds the handler. Websocket clients are admitted under rootCtx,
// not the request context, since they outlive the upgrade request.
func New(rootCtx context.Context, chamber Chamber, maxFrame int, writeTimeout time.Duration) *Handler {
	return &Handler{
		chamber: chamber,
		rootCtx: rootCtx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxFrame,
			WriteBufferSize: maxFrame,
			CheckOrigin:     func(*http.Request) bool { return true }, // no auth anywhere in chamber
		},
		maxFrame:     maxFrame,
		writeTimeout: writeTimeout,
	}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/sessions", h.sessions)
	r.GET("/ws", h.ws)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sessions lists the connected clients as the dispatcher currently sees them.
func (h *Handler) sessions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	list, err := h.chamber.Sessions(ctx)
	switch {
	case errors.Is(err, server.ErrDispatcherStopped), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "sessions": list})
}

// ws upgrades the request and hands the connection to the chamber as one
// more client, speaking the same wire format with one message per frame.
func (h *Handler) ws(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	stream := transport.NewWSStream(conn, h.maxFrame, h.writeTimeout)
	if h.chamber.Admit(h.rootCtx, stream) == nil {
		zap.L().Debug("ws.admit_refused", zap.String("addr", stream.RemoteAddr()))
	}
}
