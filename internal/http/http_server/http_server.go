package http_server

import (
	"chamber/internal/http/adminhandler"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const disposeTimeout = 10 * time.Second

type httpServer struct {
	listenPort uint16
	srv        http.Server

	mu sync.Mutex
	ln net.Listener
}

func NewHttpServer(listenPort uint16, admin *adminhandler.Handler) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		srv: http.Server{
			Handler:           Engine(admin),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Engine builds the gin router; split out so tests can drive it directly.
func Engine(admin *adminhandler.Handler) *gin.Engine {
	routerEngine := gin.New()
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	admin.Register(routerEngine)
	return routerEngine
}

// Start serves until Dispose is called. It returns http.ErrServerClosed
// after a clean shutdown.
func (h *httpServer) Start() error {
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.ln = ln
	h.mu.Unlock()
	zap.L().Info("http.listening", zap.String("addr", ln.Addr().String()))
	return h.srv.Serve(ln)
}

// Addr is the bound address, or "" before Start has listened.
func (h *httpServer) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return ""
	}
	return h.ln.Addr().String()
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish. Upgraded websocket
// connections are not tracked by net/http; the dispatcher closes them.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
	}
	return nil
}
