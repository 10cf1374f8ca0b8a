package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/messaging"
	"github.com/joao-fontenele/tableside/internal/printer"
)

type printCall struct {
	area    printer.Area
	orderID int64
	payment string
}

type fakePrinter struct {
	mu    sync.Mutex
	auto  map[printer.Area]bool
	calls []printCall
}

func (p *fakePrinter) AutoPrint(area printer.Area) bool {
	return p.auto[area]
}

func (p *fakePrinter) Print(_ context.Context, area printer.Area, order domain.Order, paymentMethod string) printer.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, printCall{area: area, orderID: order.ID, payment: paymentMethod})
	return printer.Result{Area: area, Simulated: true}
}

func (p *fakePrinter) recorded() []printCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]printCall(nil), p.calls...)
}

func delivery(t *testing.T, event domain.OrderEvent) messaging.Delivery {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return messaging.Delivery{Key: "1", Type: event.Type, Payload: payload}
}

func TestPrintHandler_Handle(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	created := domain.OrderEvent{Type: domain.LifecycleOrderCreated, OrderID: 1, Order: domain.Order{ID: 1}}
	delivered := domain.OrderEvent{
		Type:    domain.LifecycleOrderDelivered,
		OrderID: 1,
		Order:   domain.Order{ID: 1, PaymentMethod: "card"},
	}

	tests := []struct {
		name  string
		auto  map[printer.Area]bool
		event domain.OrderEvent
		want  []printCall
	}{
		{"created prints the kitchen ticket", map[printer.Area]bool{printer.AreaKitchen: true}, created,
			[]printCall{{area: printer.AreaKitchen, orderID: 1}}},
		{"delivered prints the receipt", map[printer.Area]bool{printer.AreaCashier: true}, delivered,
			[]printCall{{area: printer.AreaCashier, orderID: 1, payment: "card"}}},
		{"auto print off", map[printer.Area]bool{}, created, nil},
		{"other events are ignored", map[printer.Area]bool{printer.AreaKitchen: true, printer.AreaCashier: true},
			domain.OrderEvent{Type: domain.LifecycleStatusChanged, OrderID: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePrinter{auto: tt.auto}
			h := NewPrintHandler(p, logger)

			if err := h.Handle(ctx, delivery(t, tt.event)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := p.recorded()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("call %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}

	t.Run("undecodable payload is skipped", func(t *testing.T) {
		p := &fakePrinter{auto: map[printer.Area]bool{printer.AreaKitchen: true}}
		h := NewPrintHandler(p, logger)

		err := h.Handle(ctx, messaging.Delivery{Type: domain.LifecycleOrderCreated, Payload: []byte("{")})
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if len(p.recorded()) != 0 {
			t.Error("expected no prints")
		}
	})
}

func TestLocalQueue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("delivers in order", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var (
			mu   sync.Mutex
			seen []string
			done = make(chan struct{})
		)
		q := NewLocalQueue(8, func(_ context.Context, d messaging.Delivery) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, d.Type)
			if len(seen) == 2 {
				close(done)
			}
			return errors.New("ignored")
		}, logger)

		go func() { _ = q.Run(ctx) }()

		_ = q.Publish(ctx, "1", domain.OrderEvent{Type: domain.LifecycleOrderCreated})
		_ = q.Publish(ctx, "1", domain.OrderEvent{Type: domain.LifecycleOrderDelivered})

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("events not delivered")
		}

		mu.Lock()
		defer mu.Unlock()
		if seen[0] != domain.LifecycleOrderCreated || seen[1] != domain.LifecycleOrderDelivered {
			t.Errorf("unexpected order %v", seen)
		}
	})

	t.Run("full queue rejects", func(t *testing.T) {
		q := NewLocalQueue(1, func(context.Context, messaging.Delivery) error { return nil }, logger)
		ctx := context.Background()

		if err := q.Publish(ctx, "1", domain.OrderEvent{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := q.Publish(ctx, "2", domain.OrderEvent{}); !errors.Is(err, ErrQueueFull) {
			t.Errorf("expected queue full, got %v", err)
		}
	})
}
