package transport

import (
	"chamber/internal/message"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const closeGrace = time.Second

// WSStream carries one encoded message per websocket data frame.
type WSStream struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewWSStream(conn *websocket.Conn, maxFrame int, writeTimeout time.Duration) *WSStream {
	if maxFrame <= 0 {
		maxFrame = message.DefaultMaxFrameSize
	}
	conn.SetReadLimit(int64(maxFrame))
	return &WSStream{conn: conn, writeTimeout: writeTimeout}
}

func (s *WSStream) ReadFrame() (string, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return "", message.ErrFrameTooLarge
		}
		return "", err
	}
	line := strings.TrimRight(string(data), "\r\n")
	if err := message.CheckFrame(line); err != nil {
		return "", err
	}
	return line, nil
}

func (s *WSStream) WriteFrame(line string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (s *WSStream) Shutdown() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace),
		)
		s.mu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *WSStream) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
