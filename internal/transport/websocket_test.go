package transport

import (
	"chamber/internal/message"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair returns a client conn and the server side wrapped in a WSStream.
func wsPair(t *testing.T, maxFrame int) (*websocket.Conn, *WSStream) {
	t.Helper()
	streams := make(chan *WSStream, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		streams <- NewWSStream(conn, maxFrame, time.Second)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case s := <-streams:
		return client, s
	case <-time.After(2 * time.Second):
		t.Fatal("server side never upgraded")
		return nil, nil
	}
}

func TestWSStream_ReadWrite(t *testing.T) {
	client, s := wsPair(t, 128)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("TextMessage,web,a,b\n")))
	line, err := s.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "TextMessage,web,a,b", line)

	out := message.Encode(message.Message{Kind: message.Text, Sender: "0", Content: "hi"})
	require.NoError(t, s.WriteFrame(out))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
}

func TestWSStream_ReadLimit(t *testing.T) {
	client, s := wsPair(t, 16)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("z", 64))))
	_, err := s.ReadFrame()
	assert.ErrorIs(t, err, message.ErrFrameTooLarge)
}

func TestWSStream_Shutdown(t *testing.T) {
	client, s := wsPair(t, 128)

	require.NoError(t, s.Shutdown())
	assert.NoError(t, s.Shutdown())
	assert.ErrorIs(t, s.WriteFrame("TextMessage,0,late"), ErrClosed)

	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWSStream_RejectsEmbeddedLineBreak(t *testing.T) {
	client, s := wsPair(t, 128)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("TextMessage,mallory,hi\nClientExit,0,forged")))
	_, err := s.ReadFrame()
	assert.ErrorIs(t, err, message.ErrEmbeddedDelimiter)
}

// A rejected websocket frame never reaches line-framed recipients as two messages.
func TestWSStream_LineBreakDoesNotSplitTCPFrames(t *testing.T) {
	client, ws := wsPair(t, 128)
	peer, server := net.Pipe()
	defer peer.Close()
	tcp := NewTCPStream(server, 128, time.Second)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("TextMessage,mallory,hi\nClientExit,0,forged")))
	line, err := ws.ReadFrame()
	require.ErrorIs(t, err, message.ErrEmbeddedDelimiter)
	assert.ErrorIs(t, tcp.WriteFrame(line+"\nClientExit,0,forged"), message.ErrEmbeddedDelimiter)
}
