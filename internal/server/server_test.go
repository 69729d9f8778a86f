package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *testClient) recv(t *testing.T) string {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func waitSessions(t *testing.T, s *Server, n int) []Session {
	t.Helper()
	var sessions []Session
	require.Eventually(t, func() bool {
		var err error
		sessions, err = s.Sessions(context.Background())
		return err == nil && len(sessions) == n
	}, 2*time.Second, 5*time.Millisecond)
	return sessions
}

func TestServer_BroadcastOverTCP(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	srv := New(256, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx, ln) }()

	a := dial(t, ln.Addr().String())
	waitSessions(t, srv, 1)
	b := dial(t, ln.Addr().String())
	sessions := waitSessions(t, srv, 2)
	assert.Equal(t, Identity(0), sessions[0].ID)
	assert.Equal(t, a.conn.LocalAddr().String(), sessions[0].Addr)
	assert.Equal(t, Identity(1), sessions[1].ID)

	a.send(t, "TextMessage,0,hello")
	assert.Equal(t, "TextMessage,0,hello\n", a.recv(t))
	assert.Equal(t, "TextMessage,0,hello\n", b.recv(t))

	require.NoError(t, b.conn.Close())
	sessions = waitSessions(t, srv, 1)
	assert.Equal(t, Identity(0), sessions[0].ID)

	a.send(t, "TextMessage,0,a,b,c")
	assert.Equal(t, "TextMessage,0,a,b,c\n", a.recv(t))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	// the server closed a's connection on the way out
	require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = a.r.ReadString('\n')
	assert.Error(t, err)
}

func TestListen_BindFailure(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = Listen(ln.Addr().String())
	assert.Error(t, err)
}
