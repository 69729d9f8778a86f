package server

import (
	"chamber/internal/message"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Publisher forwards locally broadcast text to other server instances.
type Publisher interface {
	Publish(ctx context.Context, m message.Message) error
}

// Recorder observes connection lifecycle. Calls are made from the
// dispatcher goroutine and must not block.
type Recorder interface {
	Opened(id Identity, addr string, at time.Time)
	Closed(id Identity, at time.Time)
}

const defaultPublishTimeout = 2 * time.Second

// Dispatcher is the single owner of the registry. Every state transition
// and every broadcast happens on the goroutine running Run.
type Dispatcher struct {
	announce <-chan *Handle
	inbox    <-chan message.Message
	relayed  <-chan message.Message
	queries  chan chan []Session
	done     chan struct{}

	registry *registry

	publisher      Publisher
	publishTimeout time.Duration
	recorder       Recorder
}

type DispatcherOption func(d *Dispatcher)

// WithPublisher publishes every applied Text message after local delivery.
func WithPublisher(p Publisher) DispatcherOption {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithRelayed attaches messages received from other instances. They are
// delivered locally and never published again.
func WithRelayed(relayed <-chan message.Message) DispatcherOption {
	return func(d *Dispatcher) { d.relayed = relayed }
}

// WithRecorder reports registrations and removals to r.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

func NewDispatcher(announce <-chan *Handle, inbox <-chan message.Message, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		announce:       announce,
		inbox:          inbox,
		queries:        make(chan chan []Session),
		done:           make(chan struct{}),
		registry:       newRegistry(),
		publishTimeout: defaultPublishTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(d)
		}
	}
	return d
}

// Run applies announcements and messages until ctx is cancelled. On return
// every registered stream is shut down.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	defer d.shutdownAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-d.announce:
			d.register(h)
		case m := <-d.inbox:
			d.drainAnnouncements()
			if err := d.apply(ctx, m); err != nil {
				zap.L().Warn("dispatcher.apply", zap.Stringer("kind", m.Kind), zap.Error(err))
			}
		case m := <-d.relayed:
			d.drainAnnouncements()
			sent, failed := d.broadcast(m)
			zap.L().Debug("dispatcher.relayed", zap.Int("sent", sent), zap.Int("failed", failed))
		case reply := <-d.queries:
			reply <- d.registry.sessions()
		}
	}
}

// Sessions asks the dispatcher for a snapshot of the registry.
func (d *Dispatcher) Sessions(ctx context.Context) ([]Session, error) {
	reply := make(chan []Session, 1)
	select {
	case d.queries <- reply:
	case <-d.done:
		return nil, ErrDispatcherStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-reply, nil
}

// drainAnnouncements registers every announcement already queued, so a
// message is never applied before the registration of its own connection.
func (d *Dispatcher) drainAnnouncements() {
	for {
		select {
		case h := <-d.announce:
			d.register(h)
		default:
			return
		}
	}
}

func (d *Dispatcher) register(h *Handle) {
	if h == nil {
		return
	}
	if old := d.registry.add(h); old != nil {
		// identity reuse after wraparound; the stale stream is unreachable now
		zap.L().Warn("dispatcher.identity_reused", zap.Stringer("id", h.ID), zap.String("stale_addr", old.Addr))
	}
	zap.L().Debug("dispatcher.registered",
		zap.Stringer("id", h.ID),
		zap.String("addr", h.Addr),
		zap.Int("clients", d.registry.len()),
	)
	if d.recorder != nil {
		d.recorder.Opened(h.ID, h.Addr, h.OpenedAt)
	}
}

// apply runs the state transition for one message.
func (d *Dispatcher) apply(ctx context.Context, m message.Message) error {
	switch m.Kind {
	case message.LogIn:
		// reserved for client-list broadcast
		zap.L().Debug("dispatcher.login", zap.String("sender", m.Sender))
		return nil
	case message.Exit:
		return d.exit(m)
	case message.ListUpdate:
		return nil
	case message.Text:
		sent, failed := d.broadcast(m)
		zap.L().Debug("dispatcher.text",
			zap.String("sender", m.Sender),
			zap.Int("sent", sent),
			zap.Int("failed", failed),
		)
		d.publish(ctx, m)
		return nil
	case message.Error:
		zap.L().Warn("dispatcher.client_error", zap.String("sender", m.Sender), zap.String("content", m.Content))
		return nil
	default:
		return fmt.Errorf("dispatcher: unhandled kind %d", int(m.Kind))
	}
}

func (d *Dispatcher) exit(m message.Message) error {
	id, err := ParseIdentity(m.Sender)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownIdentity, err)
	}
	h, ok := d.registry.remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	}
	if err := h.Shutdown(); err != nil {
		zap.L().Debug("dispatcher.shutdown", zap.Stringer("id", id), zap.Error(err))
	}
	if d.recorder != nil {
		d.recorder.Closed(id, time.Now().UTC())
	}
	zap.L().Info("dispatcher.exit",
		zap.Stringer("id", id),
		zap.String("note", m.Content),
		zap.Int("clients", d.registry.len()),
	)
	return nil
}

// broadcast writes m to every registered handle. A failed write is counted
// and logged; it never stops delivery to the remaining handles.
func (d *Dispatcher) broadcast(m message.Message) (sent, failed int) {
	line := message.Encode(m)
	d.registry.all(func(h *Handle) {
		if err := h.WriteFrame(line); err != nil {
			failed++
			zap.L().Warn("dispatcher.write", zap.Stringer("id", h.ID), zap.String("addr", h.Addr), zap.Error(err))
			return
		}
		sent++
	})
	return sent, failed
}

func (d *Dispatcher) publish(ctx context.Context, m message.Message) {
	if d.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, m); err != nil {
		zap.L().Warn("dispatcher.publish", zap.Error(err))
	}
}

func (d *Dispatcher) shutdownAll() {
	now := time.Now().UTC()
	for _, h := range d.registry.clear() {
		_ = h.Shutdown()
		if d.recorder != nil {
			d.recorder.Closed(h.ID, now)
		}
	}
}
