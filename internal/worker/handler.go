package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/messaging"
	"github.com/joao-fontenele/tableside/internal/printer"
)

type Printer interface {
	AutoPrint(area printer.Area) bool
	Print(ctx context.Context, area printer.Area, order domain.Order, paymentMethod string) printer.Result
}

// PrintHandler prints tickets for lifecycle events: the kitchen ticket when
// an order is created and the receipt when it is delivered, for areas that
// have auto print switched on.
type PrintHandler struct {
	printer Printer
	logger  *slog.Logger
}

func NewPrintHandler(p Printer, logger *slog.Logger) *PrintHandler {
	return &PrintHandler{
		printer: p,
		logger:  logger,
	}
}

// Handle never fails: a ticket that cannot print is simulated by the
// printer, and a message that cannot be decoded would fail forever.
func (h *PrintHandler) Handle(ctx context.Context, d messaging.Delivery) error {
	if d.Type != "" && d.Type != domain.LifecycleOrderCreated && d.Type != domain.LifecycleOrderDelivered {
		return nil
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		h.logger.Error("skipping undecodable lifecycle event", "error", err, "key", d.Key)
		return nil
	}

	var area printer.Area
	switch event.Type {
	case domain.LifecycleOrderCreated:
		area = printer.AreaKitchen
	case domain.LifecycleOrderDelivered:
		area = printer.AreaCashier
	default:
		return nil
	}

	if !h.printer.AutoPrint(area) {
		h.logger.Debug("auto print off", "area", area, "order_id", event.OrderID)
		return nil
	}

	result := h.printer.Print(ctx, area, event.Order, event.Order.PaymentMethod)
	h.logger.Info("ticket auto printed", "order_id", event.OrderID, "ticket_number", event.TicketNumber,
		"area", area, "simulated", result.Simulated, "message", result.Message)
	return nil
}
