package transport

import "errors"

var ErrClosed = errors.New("transport: stream closed")

// Stream is a framed, bidirectional connection to one client.
//
// ReadFrame is called only by the stream's reader goroutine; WriteFrame and
// Shutdown only by the dispatcher. Implementations must allow the two sides
// to run concurrently.
type Stream interface {
	// ReadFrame blocks until one whole encoded message arrives.
	ReadFrame() (string, error)
	// WriteFrame sends one encoded message, adding transport framing.
	WriteFrame(line string) error
	// Shutdown closes the stream gracefully. Safe to call more than once.
	Shutdown() error
	RemoteAddr() string
}
