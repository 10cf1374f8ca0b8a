// Package memory is an in-process store for single-instance deployments
// and tests. Transactions run one at a time and stage their writes until
// commit.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/orders"
)

type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	orders    map[int64]domain.Order
	tables    map[int]domain.Table
	sequences map[string]int
	products  map[int64]domain.Product
	clients   map[int64]domain.Client
	lastID    int64
}

func New() *Store {
	return &Store{
		orders:    make(map[int64]domain.Order),
		tables:    make(map[int]domain.Table),
		sequences: make(map[string]int),
		products:  make(map[int64]domain.Product),
		clients:   make(map[int64]domain.Client),
	}
}

// AddTables creates free tables with the given numbers.
func (s *Store) AddTables(numbers ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range numbers {
		s.tables[n] = domain.Table{Number: n, Status: domain.TableStatusFree, UpdatedAt: time.Now().UTC()}
	}
}

func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) AddClient(c domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.NotFoundError("product %d", id)
	}
	return &p, nil
}

func (s *Store) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, domain.NotFoundError("client %d", id)
	}
	return &c, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:     s,
		orders:    make(map[int64]domain.Order),
		tables:    make(map[int]domain.Table),
		sequences: make(map[string]int),
	}
	s.mu.RLock()
	tx.lastID = s.lastID
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for n, t := range tx.tables {
		s.tables[n] = t
	}
	for day, n := range tx.sequences {
		s.sequences[day] = n
	}
	s.lastID = tx.lastID
	return nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NotFoundError("order %d", id)
	}
	c := o.Clone()
	return &c, nil
}

func (s *Store) ListOrders(_ context.Context, filter orders.ListFilter) ([]domain.Order, error) {
	s.mu.RLock()
	result := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Status == "" || o.Status == filter.Status {
			result = append(result, o.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) ListTables(_ context.Context) ([]domain.Table, error) {
	s.mu.RLock()
	result := make([]domain.Table, 0, len(s.tables))
	for _, t := range s.tables {
		result = append(result, copyTable(t))
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b domain.Table) int { return a.Number - b.Number })
	return result, nil
}

// memTx reads through to the committed state and keeps its own writes
// aside until InTx commits them.
type memTx struct {
	store     *Store
	orders    map[int64]domain.Order
	tables    map[int]domain.Table
	sequences map[string]int
	lastID    int64
}

func (t *memTx) order(id int64) (domain.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	o, ok := t.store.orders[id]
	return o, ok
}

func (t *memTx) LockOrder(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := t.order(id)
	if !ok {
		return nil, domain.NotFoundError("order %d", id)
	}
	c := o.Clone()
	return &c, nil
}

func (t *memTx) NextTicketNumber(_ context.Context, businessDay string) (int, error) {
	n, ok := t.sequences[businessDay]
	if !ok {
		t.store.mu.RLock()
		n = t.store.sequences[businessDay]
		t.store.mu.RUnlock()
	}
	n++
	t.sequences[businessDay] = n
	return n, nil
}

func (t *memTx) InsertOrder(_ context.Context, order *domain.Order, _ string) error {
	t.lastID++
	order.ID = t.lastID
	t.orders[order.ID] = order.Clone()
	return nil
}

func (t *memTx) UpdateOrder(_ context.Context, order *domain.Order, expected domain.OrderStatus) error {
	current, ok := t.order(order.ID)
	if !ok {
		return domain.NotFoundError("order %d", order.ID)
	}
	if current.Status != expected {
		return &domain.TransitionError{OrderID: order.ID, From: current.Status, To: order.Status}
	}

	current.Status = order.Status
	current.Note = order.Note
	current.PaymentMethod = order.PaymentMethod
	current.UpdatedAt = order.UpdatedAt
	t.orders[order.ID] = current.Clone()
	return nil
}

func (t *memTx) LockTable(_ context.Context, number int) (*domain.Table, error) {
	table, ok := t.tables[number]
	if !ok {
		t.store.mu.RLock()
		table, ok = t.store.tables[number]
		t.store.mu.RUnlock()
	}
	if !ok {
		return nil, domain.NotFoundError("table %d", number)
	}
	c := copyTable(table)
	return &c, nil
}

func (t *memTx) SaveTable(_ context.Context, table *domain.Table) error {
	t.tables[table.Number] = copyTable(*table)
	return nil
}

func copyTable(t domain.Table) domain.Table {
	if t.OrderID != nil {
		id := *t.OrderID
		t.OrderID = &id
	}
	return t
}
