package server

import (
	"chamber/internal/message"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeStream records writes and serves reads from a channel; closing the
// channel ends the read side with io.EOF.
type fakeStream struct {
	addr     string
	writeErr error
	frames   chan string

	mu        sync.Mutex
	writes    []string
	shutdowns int
}

func newFakeStream(addr string) *fakeStream {
	return &fakeStream{addr: addr, frames: make(chan string, 16)}
}

func (f *fakeStream) ReadFrame() (string, error) {
	line, ok := <-f.frames
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (f *fakeStream) WriteFrame(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, line)
	return f.writeErr
}

func (f *fakeStream) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeStream) RemoteAddr() string { return f.addr }

func (f *fakeStream) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeStream) Shutdowns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []message.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, m message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m)
	return p.err
}

func (p *fakePublisher) Sent() []message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message.Message(nil), p.sent...)
}

type fakeRecorder struct {
	mu     sync.Mutex
	opened []Identity
	closed []Identity
}

func (r *fakeRecorder) Opened(id Identity, _ string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, id)
}

func (r *fakeRecorder) Closed(id Identity, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, id)
}
