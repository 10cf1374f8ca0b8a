// Package tables keeps a dining table's occupancy consistent with its
// active order. Every function runs inside the caller's transaction; the
// order state machine is the only caller.
package tables

import (
	"context"
	"time"

	"github.com/joao-fontenele/tableside/internal/domain"
)

// Store is the transactional view of the table rows. LockTable must hold
// the row until the surrounding transaction ends.
type Store interface {
	LockTable(ctx context.Context, number int) (*domain.Table, error)
	SaveTable(ctx context.Context, table *domain.Table) error
}

var now = time.Now

// Occupy links the table to orderID. It fails with a conflict unless the
// table is free or already linked to the same order.
func Occupy(ctx context.Context, s Store, number int, orderID int64) (*domain.Table, error) {
	table, err := s.LockTable(ctx, number)
	if err != nil {
		return nil, err
	}

	switch {
	case table.Status == domain.TableStatusOccupied && table.LinkedTo(orderID):
		return table, nil
	case table.Status != domain.TableStatusFree:
		return nil, domain.ConflictError("table %d is %s", number, table.Status)
	}

	table.Status = domain.TableStatusOccupied
	table.OrderID = &orderID
	return save(ctx, s, table)
}

// Free marks the table free and clears any order link. Freeing a free table
// is a no-op.
func Free(ctx context.Context, s Store, number int) (*domain.Table, error) {
	table, err := s.LockTable(ctx, number)
	if err != nil {
		return nil, err
	}

	if table.Status == domain.TableStatusFree && table.OrderID == nil {
		return table, nil
	}

	table.Status = domain.TableStatusFree
	table.OrderID = nil
	return save(ctx, s, table)
}

// Reserve holds a free table for a later arrival.
func Reserve(ctx context.Context, s Store, number int) (*domain.Table, error) {
	table, err := s.LockTable(ctx, number)
	if err != nil {
		return nil, err
	}

	if table.Status != domain.TableStatusFree {
		return nil, domain.ConflictError("table %d is %s", number, table.Status)
	}

	table.Status = domain.TableStatusReserved
	return save(ctx, s, table)
}

// Release frees the table only while it is linked to orderID, so a terminal
// transition never frees a table another order has since taken. The bool
// reports whether the table changed.
func Release(ctx context.Context, s Store, number int, orderID int64) (*domain.Table, bool, error) {
	table, err := s.LockTable(ctx, number)
	if err != nil {
		return nil, false, err
	}

	if !table.LinkedTo(orderID) {
		return table, false, nil
	}

	table.Status = domain.TableStatusFree
	table.OrderID = nil
	table, err = save(ctx, s, table)
	if err != nil {
		return nil, false, err
	}
	return table, true, nil
}

func save(ctx context.Context, s Store, table *domain.Table) (*domain.Table, error) {
	table.UpdatedAt = now().UTC()
	if err := s.SaveTable(ctx, table); err != nil {
		return nil, err
	}
	return table, nil
}
