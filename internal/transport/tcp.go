package transport

import (
	"chamber/internal/message"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// TCPStream frames messages as newline-terminated lines over a net.Conn.
type TCPStream struct {
	conn         net.Conn
	scanner      *message.Scanner
	writeTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewTCPStream wraps conn. Frames larger than maxFrame bytes fail the read
// side; a non-positive writeTimeout disables write deadlines.
func NewTCPStream(conn net.Conn, maxFrame int, writeTimeout time.Duration) *TCPStream {
	return &TCPStream{
		conn:         conn,
		scanner:      message.NewScanner(conn, maxFrame),
		writeTimeout: writeTimeout,
	}
}

func (s *TCPStream) ReadFrame() (string, error) {
	line, err := s.scanner.Next()
	if err != nil {
		return "", err
	}
	if err := message.CheckFrame(line); err != nil {
		return "", err
	}
	return line, nil
}

func (s *TCPStream) WriteFrame(line string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := message.CheckFrame(line); err != nil {
		return err
	}
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, message.Delimiter)
	_, err := s.conn.Write(buf)
	return err
}

// Shutdown half-closes the write side first when the conn supports it, so
// the peer observes an orderly EOF, then releases the socket.
func (s *TCPStream) Shutdown() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *TCPStream) RemoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
