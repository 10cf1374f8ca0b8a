package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/tableside/internal/messaging"
)

var ErrQueueFull = errors.New("local event queue full")

// LocalQueue stands in for the Kafka topic when the server runs without a
// broker. Publish enqueues, Run hands events to the handler in order.
type LocalQueue struct {
	events  chan messaging.Delivery
	handler messaging.Handler
	logger  *slog.Logger
}

func NewLocalQueue(size int, handler messaging.Handler, logger *slog.Logger) *LocalQueue {
	return &LocalQueue{
		events:  make(chan messaging.Delivery, size),
		handler: handler,
		logger:  logger,
	}
}

func (q *LocalQueue) Publish(_ context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	d := messaging.Delivery{Key: key, Payload: payload}
	if typed, ok := event.(messaging.Typed); ok {
		d.Type = typed.EventType()
	}

	select {
	case q.events <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drains the queue until ctx is done.
func (q *LocalQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-q.events:
			if err := q.handler(ctx, d); err != nil {
				q.logger.Error("local event handler failed", "error", err, "key", d.Key, "type", d.Type)
			}
		}
	}
}
