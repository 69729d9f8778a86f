package client

import (
	"bufio"
	"chamber/internal/message"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"go.uber.org/zap"
)

// Options configures the line client.
type Options struct {
	Addr     string
	Name     string // sender put on outgoing messages; local address when empty
	MaxFrame int
}

// Run connects to the chamber at opts.Addr, sends every line read from in as
// a text message and prints every received message to out as
// "sender: content". It returns when in is exhausted and the server has
// closed the connection, when the server goes away, or when ctx ends.
func Run(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("client dial %s: %w", opts.Addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sender := opts.Name
	if sender == "" {
		sender = conn.LocalAddr().String()
	}
	zap.L().Debug("client.connected", zap.String("addr", opts.Addr), zap.String("sender", sender))

	received := make(chan error, 1)
	go func() { received <- receive(conn, opts.MaxFrame, out) }()

	sent := make(chan error, 1)
	go func() { sent <- send(conn, sender, opts.MaxFrame, in, out) }()

	select {
	case err := <-sent:
		if err != nil {
			return err
		}
		// let the server see our EOF and finish delivering what we sent
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		select {
		case err := <-received:
			return err
		case <-ctx.Done():
			return nil
		}
	case err := <-received:
		return err
	case <-ctx.Done():
		return nil
	}
}

func receive(conn net.Conn, maxFrame int, out io.Writer) error {
	sc := message.NewScanner(conn, maxFrame)
	for {
		line, err := sc.Next()
		if err != nil {
			fmt.Fprintln(out, "Server is offline now.")
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, message.Decode(line).Brief())
	}
}

func send(conn net.Conn, sender string, maxFrame int, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		frame := message.Frame(message.Message{Kind: message.Text, Sender: sender, Content: text})
		if maxFrame > 0 && len(frame) > maxFrame {
			fmt.Fprintf(out, "Message too long (%d bytes, max %d), not sent.\n", len(frame), maxFrame)
			continue
		}
		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("client write: %w", err)
		}
	}
	return sc.Err()
}
