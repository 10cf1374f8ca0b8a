package messaging

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/joao-fontenele/tableside/internal/domain"
)

func TestMessageCarrier(t *testing.T) {
	msg := &kafka.Message{}
	carrier := NewMessageCarrier(msg)

	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")
	carrier.Set("tracestate", "c")

	if got := carrier.Get("traceparent"); got != "b" {
		t.Errorf("expected replaced value b, got %q", got)
	}
	if got := carrier.Get("missing"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 2 {
		t.Errorf("expected 2 keys, got %v", keys)
	}
	if len(msg.Headers) != 2 {
		t.Errorf("expected headers on the message, got %d", len(msg.Headers))
	}
}

func TestNewMessage(t *testing.T) {
	t.Run("typed event sets the event-type header", func(t *testing.T) {
		event := domain.OrderEvent{Type: domain.LifecycleOrderCreated, OrderID: 42}

		msg, err := newMessage("42", event)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		carrier := NewMessageCarrier(&msg)
		if got := carrier.Get(headerEventType); got != domain.LifecycleOrderCreated {
			t.Errorf("expected event type header, got %q", got)
		}
		if string(msg.Key) != "42" {
			t.Errorf("expected key 42, got %s", msg.Key)
		}

		var decoded domain.OrderEvent
		if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.OrderID != 42 {
			t.Errorf("unexpected payload %s: %v", msg.Value, err)
		}
	})

	t.Run("plain values have no event type", func(t *testing.T) {
		msg, err := newMessage("k", map[string]int{"a": 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := NewMessageCarrier(&msg).Get(headerEventType); got != "" {
			t.Errorf("expected no event type, got %q", got)
		}
	})

	t.Run("unencodable event", func(t *testing.T) {
		if _, err := newMessage("k", make(chan int)); err == nil {
			t.Error("expected an error")
		}
	})
}
