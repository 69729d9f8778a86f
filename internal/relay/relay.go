package relay

import (
	"chamber/internal/message"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope is the Redis payload of one relayed broadcast.
type Envelope struct {
	Origin string `json:"origin"` // instance that applied the message first
	Frame  string `json:"frame"`  // encoded message
}

// Relay shares text broadcasts between server instances over one Redis
// pub/sub channel. Each instance skips the envelopes it published itself.
type Relay struct {
	rdb     *redis.Client
	channel string
	origin  string
}

// New builds a relay publishing as origin; an empty origin gets a fresh
// random id.
func New(rdb *redis.Client, channel, origin string) *Relay {
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Relay{rdb: rdb, channel: channel, origin: origin}
}

func (r *Relay) Origin() string { return r.origin }

// Publish sends m to every other instance.
func (r *Relay) Publish(ctx context.Context, m message.Message) error {
	payload, err := json.Marshal(Envelope{Origin: r.origin, Frame: message.Encode(m)})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Subscribe forwards messages published by other instances to out until
// ctx is cancelled or the Redis connection goes away.
func (r *Relay) Subscribe(ctx context.Context, out chan<- message.Message) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pubsub.Channel():
			if !ok {
				zap.L().Warn("relay.subscription_closed", zap.String("channel", r.channel))
				return
			}
			msg, ok := r.unwrap(m.Payload)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// unwrap decodes a payload, rejecting our own envelopes and anything that
// is not a text broadcast.
func (r *Relay) unwrap(payload string) (message.Message, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		zap.L().Warn("relay.bad_envelope", zap.Error(err))
		return message.Message{}, false
	}
	if env.Origin == r.origin {
		return message.Message{}, false
	}
	if err := message.CheckFrame(env.Frame); err != nil {
		zap.L().Warn("relay.bad_frame", zap.String("origin", env.Origin), zap.Error(err))
		return message.Message{}, false
	}
	m := message.Decode(env.Frame)
	if m.Kind != message.Text {
		zap.L().Debug("relay.skip", zap.Stringer("kind", m.Kind), zap.String("origin", env.Origin))
		return message.Message{}, false
	}
	return m, true
}
