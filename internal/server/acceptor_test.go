package server

import (
	"chamber/internal/message"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptor_AdmitAssignsIncreasingIdentities(t *testing.T) {
	announce := make(chan *Handle, 3)
	inbox := make(chan message.Message, 3)
	a := NewAcceptor(announce, inbox, 64, 0)

	streams := []*fakeStream{newFakeStream("a"), newFakeStream("b"), newFakeStream("c")}
	for i, s := range streams {
		h := a.Admit(context.Background(), s)
		require.NotNil(t, h)
		assert.Equal(t, Identity(i), h.ID)
		assert.Same(t, h, <-announce)
	}

	// readers are bound to the same streams: closing one reports its exit
	close(streams[1].frames)
	m := <-inbox
	assert.Equal(t, message.Exit, m.Kind)
	assert.Equal(t, "1", m.Sender)

	close(streams[0].frames)
	close(streams[2].frames)
	for range 2 {
		<-inbox
	}
	a.Wait()
}

func TestAcceptor_AdmitAfterCancel(t *testing.T) {
	a := NewAcceptor(make(chan *Handle), make(chan message.Message), 64, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newFakeStream("a")
	assert.Nil(t, a.Admit(ctx, s))
	assert.Equal(t, 1, s.Shutdowns())
}

func TestAcceptor_AdmitAfterCancelWithRoomToAnnounce(t *testing.T) {
	announce := make(chan *Handle, announceBuffer)
	a := NewAcceptor(announce, make(chan message.Message), 64, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range announceBuffer {
		s := newFakeStream("a")
		assert.Nil(t, a.Admit(ctx, s))
		assert.Equal(t, 1, s.Shutdowns())
	}
	assert.Empty(t, announce)
	a.Wait()
}

func TestAcceptor_AdmitAfterClose(t *testing.T) {
	announce := make(chan *Handle, 1)
	a := NewAcceptor(announce, make(chan message.Message), 64, 0)
	a.Close()
	a.Close()

	s := newFakeStream("a")
	assert.Nil(t, a.Admit(context.Background(), s))
	assert.Equal(t, 1, s.Shutdowns())
	assert.Empty(t, announce)
}

func TestAcceptor_CloseReleasesBlockedAdmit(t *testing.T) {
	a := NewAcceptor(make(chan *Handle), make(chan message.Message), 64, 0)

	s := newFakeStream("a")
	admitted := make(chan *Handle, 1)
	go func() { admitted <- a.Admit(context.Background(), s) }()

	// the identity is taken once Admit is past the admission check
	require.Eventually(t, func() bool { return a.next.Load() == 1 }, time.Second, 5*time.Millisecond)

	a.Close()
	assert.Nil(t, <-admitted)
	assert.Equal(t, 1, s.Shutdowns())
	a.Wait()
}
