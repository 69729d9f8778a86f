package server

import (
	"chamber/internal/transport"
	"fmt"
	"strconv"
	"time"
)

// Identity is the process-local number assigned to a connection when it is
// admitted. Identities grow from 0; wraparound after 2^32 admissions is not
// handled.
type Identity uint32

func (id Identity) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseIdentity reads an identity rendered by Identity.String.
func ParseIdentity(s string) (Identity, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse identity %q: %w", s, err)
	}
	return Identity(n), nil
}

// Handle names one admitted stream. The acceptor hands one copy to the
// dispatcher (write side) and a clone to the reader goroutine (read side);
// both refer to the same underlying connection.
type Handle struct {
	ID       Identity
	Addr     string
	OpenedAt time.Time

	stream transport.Stream
}

func NewHandle(id Identity, stream transport.Stream) *Handle {
	return &Handle{
		ID:       id,
		Addr:     stream.RemoteAddr(),
		OpenedAt: time.Now().UTC(),
		stream:   stream,
	}
}

// Clone returns a second handle over the same stream.
func (h *Handle) Clone() *Handle {
	c := *h
	return &c
}

func (h *Handle) ReadFrame() (string, error) { return h.stream.ReadFrame() }
func (h *Handle) WriteFrame(line string) error { return h.stream.WriteFrame(line) }
func (h *Handle) Shutdown() error { return h.stream.Shutdown() }
