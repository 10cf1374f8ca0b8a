package domain

import "time"

type TableStatus string

const (
	TableStatusFree     TableStatus = "free"
	TableStatusOccupied TableStatus = "occupied"
	TableStatusReserved TableStatus = "reserved"
)

type Table struct {
	Number    int         `json:"number"`
	Status    TableStatus `json:"status"`
	OrderID   *int64      `json:"order_id,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LinkedTo reports whether the table's back-reference points at orderID.
func (t Table) LinkedTo(orderID int64) bool {
	return t.OrderID != nil && *t.OrderID == orderID
}
