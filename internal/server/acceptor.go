package server

import (
	"chamber/internal/message"
	"chamber/internal/transport"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

// Acceptor admits new streams: it numbers them, announces them to the
// dispatcher and starts their reader goroutines.
type Acceptor struct {
	next     atomic.Uint32
	announce chan<- *Handle
	inbox    chan<- message.Message

	maxFrame     int
	writeTimeout time.Duration

	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	admitting sync.WaitGroup
	readers   sync.WaitGroup
}

func NewAcceptor(announce chan<- *Handle, inbox chan<- message.Message, maxFrame int, writeTimeout time.Duration) *Acceptor {
	return &Acceptor{
		announce:     announce,
		inbox:        inbox,
		maxFrame:     maxFrame,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Listen binds the TCP endpoint. Its failure is meant to be fatal.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	zap.L().Info("acceptor.listening", zap.String("addr", ln.Addr().String()))
	return ln, nil
}

// Serve accepts connections from ln until ctx is cancelled or ln is closed.
// A failed accept is logged and the loop keeps going.
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			if delay == 0 {
				delay = acceptBackoffMin
			} else {
				delay = min(2*delay, acceptBackoffMax)
			}
			zap.L().Warn("acceptor.accept", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0
		a.Admit(ctx, transport.NewTCPStream(conn, a.maxFrame, a.writeTimeout))
	}
}

// Admit registers stream under the next identity and starts its reader.
// It shuts stream down and returns nil when ctx has ended or admissions
// are closed, before or while waiting for the dispatcher.
func (a *Acceptor) Admit(ctx context.Context, stream transport.Stream) *Handle {
	a.mu.Lock()
	if a.closed || ctx.Err() != nil {
		a.mu.Unlock()
		_ = stream.Shutdown()
		return nil
	}
	a.admitting.Add(1)
	a.mu.Unlock()
	defer a.admitting.Done()

	id := Identity(a.next.Add(1) - 1)
	h := NewHandle(id, stream)

	select {
	case a.announce <- h:
	case <-ctx.Done():
		_ = stream.Shutdown()
		return nil
	case <-a.done:
		_ = stream.Shutdown()
		return nil
	}
	zap.L().Info("acceptor.online", zap.Stringer("id", id), zap.String("addr", h.Addr))

	a.readers.Add(1)
	go func(h *Handle) {
		defer a.readers.Done()
		readLoop(ctx, a.done, h, a.inbox)
	}(h.Clone())
	return h
}

// Close stops admissions. It returns once every Admit in flight has either
// announced its handle or given up; later calls to Admit are refused.
// Readers blocked on a full inbox give up as well.
func (a *Acceptor) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.done)
	}
	a.mu.Unlock()
	a.admitting.Wait()
}

// Wait blocks until every reader goroutine started by Admit has returned.
// Call it after Close.
func (a *Acceptor) Wait() { a.readers.Wait() }
