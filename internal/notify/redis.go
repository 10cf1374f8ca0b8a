package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultChannel      = "tableside:notifications"
	DefaultRelayTimeout = time.Second
)

type envelope struct {
	Origin  string   `json:"origin"`
	Groups  []string `json:"groups"`
	Message Message  `json:"message"`
}

// RedisBridge shares events between server instances. Publish delivers to
// the local hub and relays over a Redis channel; Run delivers what other
// instances relayed. A relay failure leaves delivery local only.
type RedisBridge struct {
	hub     *Hub
	client  redis.UniversalClient
	channel string
	origin  string
	logger  *slog.Logger

	relayTimeout time.Duration
}

type BridgeOption func(*RedisBridge)

// WithRelayTimeout bounds how long Publish waits on Redis.
func WithRelayTimeout(d time.Duration) BridgeOption {
	return func(b *RedisBridge) {
		if d > 0 {
			b.relayTimeout = d
		}
	}
}

// NewRedisBridge relays through client. The client should be created with
// ContextTimeoutEnabled so the relay timeout also bounds socket reads.
func NewRedisBridge(hub *Hub, client redis.UniversalClient, channel string, logger *slog.Logger, opts ...BridgeOption) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	b := &RedisBridge{
		hub:          hub,
		client:       client,
		channel:      channel,
		origin:       uuid.NewString(),
		logger:       logger,
		relayTimeout: DefaultRelayTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBridge) Publish(ctx context.Context, groups []string, event string, payload any) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		b.logger.Error("failed to encode event", "error", err, "event", event)
		return
	}
	b.hub.Deliver(ctx, groups, msg)

	data, err := json.Marshal(envelope{Origin: b.origin, Groups: groups, Message: msg})
	if err != nil {
		b.logger.Error("failed to encode relay envelope", "error", err, "event", event)
		return
	}

	// The caller's request may already be finished; the relay outlives it
	// but never by more than relayTimeout.
	relayCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.relayTimeout)
	defer cancel()

	if err := b.client.Publish(relayCtx, b.channel, data).Err(); err != nil {
		b.logger.Warn("failed to relay event", "error", err, "event", event, "channel", b.channel)
	}
}

// Run subscribes to the relay channel until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("notification relay subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, m.Payload)
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("invalid relay envelope", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.hub.Deliver(ctx, env.Groups, env.Message)
}
