package server

import (
	"chamber/internal/message"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// exitNote is the content of the Exit message a reader sends when its
// connection goes away.
func exitNote(h *Handle) string {
	return fmt.Sprintf("Client %s with id %s is offline now.", h.Addr, h.ID)
}

// readLoop decodes frames from h and forwards them to inbox until the read
// side fails, then reports the connection's exit and returns. It never
// retries a failed read.
func readLoop(ctx context.Context, stop <-chan struct{}, h *Handle, inbox chan<- message.Message) {
	for {
		line, err := h.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				zap.L().Info("reader.closed", zap.Stringer("id", h.ID), zap.String("addr", h.Addr))
			} else {
				zap.L().Info("reader.failed", zap.Stringer("id", h.ID), zap.String("addr", h.Addr), zap.Error(err))
			}
			forward(ctx, stop, inbox, message.Message{
				Kind:    message.Exit,
				Sender:  h.ID.String(),
				Content: exitNote(h),
			})
			return
		}
		if line == "" {
			continue
		}
		m := message.Decode(line)
		zap.L().Debug("reader.message",
			zap.Stringer("id", h.ID),
			zap.String("addr", h.Addr),
			zap.Stringer("msg", m),
		)
		if !forward(ctx, stop, inbox, m) {
			return
		}
	}
}

func forward(ctx context.Context, stop <-chan struct{}, inbox chan<- message.Message, m message.Message) bool {
	select {
	case inbox <- m:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}
