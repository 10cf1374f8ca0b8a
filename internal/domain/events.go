package domain

import "time"

// Subscriber groups. GroupAll addresses every connected subscriber.
const (
	GroupAll       = "all"
	GroupKitchen   = "kitchen"
	GroupCashier   = "cashier"
	GroupDashboard = "dashboard"
)

// Real-time event names, as seen by display clients.
const (
	EventOrderCreated        = "order:created"
	EventKitchenOrderCreated = "kitchen:order-created"
	EventOrderStatusChanged  = "order:status-changed"
	EventOrderReady          = "order:ready"
	EventOrderDelivered      = "order:delivered"
	EventOrderCancelled      = "order:cancelled"
	EventTableUpdated        = "table:updated"
	EventDashboardUpdate     = "dashboard:update"
)

// Lifecycle event types written to the durable event stream.
const (
	LifecycleOrderCreated   = "order.created"
	LifecycleStatusChanged  = "order.status_changed"
	LifecycleOrderDelivered = "order.delivered"
	LifecycleOrderCancelled = "order.cancelled"
)

type StatusChange struct {
	Order          Order       `json:"order"`
	PreviousStatus OrderStatus `json:"previous_status"`
}

type OrderEvent struct {
	Type           string      `json:"type"`
	OrderID        int64       `json:"order_id"`
	TicketNumber   int         `json:"ticket_number"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	Order          Order       `json:"order"`
	Timestamp      time.Time   `json:"timestamp"`
}

// EventType names the event on the wire, e.g. as a message header.
func (e OrderEvent) EventType() string {
	return e.Type
}
