package server

import (
	"chamber/internal/message"
	"chamber/internal/transport"
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	announceBuffer = 16
	inboxBuffer    = 256
)

// Server wires an Acceptor and a Dispatcher together over the two
// many-producer channels that are the only link between them.
type Server struct {
	announce chan *Handle
	inbox    chan message.Message

	acceptor   *Acceptor
	dispatcher *Dispatcher
}

func New(maxFrame int, writeTimeout time.Duration, options ...DispatcherOption) *Server {
	announce := make(chan *Handle, announceBuffer)
	inbox := make(chan message.Message, inboxBuffer)
	return &Server{
		announce:   announce,
		inbox:      inbox,
		acceptor:   NewAcceptor(announce, inbox, maxFrame, writeTimeout),
		dispatcher: NewDispatcher(announce, inbox, options...),
	}
}

// Run serves ln until ctx is cancelled. Connections are closed abruptly on
// the way out; nothing is drained or announced to clients.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptor.Serve(ctx, ln) })
	g.Go(func() error { return s.dispatcher.Run(ctx) })

	err := g.Wait()
	s.acceptor.Close()
	s.discardPending()
	s.acceptor.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Admit hands a stream accepted by another front end (e.g. websocket) to
// the same admission path as TCP connections.
func (s *Server) Admit(ctx context.Context, stream transport.Stream) *Handle {
	return s.acceptor.Admit(ctx, stream)
}

// Sessions returns a snapshot of the registered connections.
func (s *Server) Sessions(ctx context.Context) ([]Session, error) {
	return s.dispatcher.Sessions(ctx)
}

// discardPending shuts down streams announced after the dispatcher stopped.
func (s *Server) discardPending() {
	for {
		select {
		case h := <-s.announce:
			zap.L().Debug("server.discard", zap.Stringer("id", h.ID))
			_ = h.Shutdown()
		default:
			return
		}
	}
}
