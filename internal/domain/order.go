package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusAwaiting  OrderStatus = "awaiting"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// transitions is the legal adjacency of the order lifecycle. Terminal
// statuses map to nothing.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaiting:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: nil,
	OrderStatusCancelled: nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Next returns the statuses reachable from s in one step.
func (s OrderStatus) Next() []OrderStatus {
	return append([]OrderStatus(nil), transitions[s]...)
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Origin string

const (
	OriginStaff Origin = "staff"
	OriginKiosk Origin = "kiosk"
)

func (o Origin) Valid() bool {
	return o == OriginStaff || o == OriginKiosk
}

const DefaultPaymentMethod = "cash"

// MaxLineQuantity and MaxOrderTotal are the largest values the order
// columns hold.
const MaxLineQuantity = 9999

var MaxOrderTotal = decimal.RequireFromString("9999999999.99")

type OrderLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Note        string          `json:"note,omitempty"`
}

func (l OrderLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID            int64           `json:"id"`
	TicketNumber  int             `json:"ticket_number"`
	Status        OrderStatus     `json:"status"`
	Total         decimal.Decimal `json:"total"`
	TableNumber   *int            `json:"table_number,omitempty"`
	ClientID      *int64          `json:"client_id,omitempty"`
	ClientName    string          `json:"client_name,omitempty"`
	Note          string          `json:"note,omitempty"`
	Origin        Origin          `json:"origin"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Lines         []OrderLine     `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SumLines returns Σ unit price × quantity over lines.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return total
}

// Recalculate resets Total from the lines. Total is never set any other way.
func (o *Order) Recalculate() {
	o.Total = SumLines(o.Lines)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (o Order) Clone() Order {
	c := o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	if o.TableNumber != nil {
		n := *o.TableNumber
		c.TableNumber = &n
	}
	if o.ClientID != nil {
		id := *o.ClientID
		c.ClientID = &id
	}
	return c
}

const cancellationPrefix = "Cancelled: "

// AppendCancellationReason records reason as the last line of note.
func AppendCancellationReason(note, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return note
	}
	if note == "" {
		return cancellationPrefix + reason
	}
	return note + "\n" + cancellationPrefix + reason
}

// CancellationReason recovers the reason stored by AppendCancellationReason.
func CancellationReason(note string) (string, bool) {
	lines := strings.Split(note, "\n")
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, cancellationPrefix) {
		return "", false
	}
	return strings.TrimPrefix(last, cancellationPrefix), true
}
