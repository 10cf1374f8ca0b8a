package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/orders"
	"github.com/joao-fontenele/tableside/internal/storage/memory"
)

type published struct {
	groups  []string
	event   string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(_ context.Context, groups []string, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{groups: groups, event: event, payload: payload})
}

func (n *recordingNotifier) take() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := n.events
	n.events = nil
	return events
}

type recordingProducer struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingProducer) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(domain.OrderEvent))
	return p.err
}

type fixture struct {
	store    *memory.Store
	service  *orders.Service
	notifier *recordingNotifier
	producer *recordingProducer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.AddTables(1, 2, 3, 4, 5, 6)
	store.AddProduct(domain.Product{ID: 1, Name: "Burger", Price: decimal.RequireFromString("10.00"), Available: true})
	store.AddProduct(domain.Product{ID: 2, Name: "Fries", Price: decimal.RequireFromString("5.00"), Available: true})
	store.AddProduct(domain.Product{ID: 3, Name: "Lobster", Price: decimal.RequireFromString("80.00"), Available: false})
	store.AddClient(domain.Client{ID: 9, Name: "Ana"})

	notifier := &recordingNotifier{}
	producer := &recordingProducer{}
	clock := func() time.Time { return time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC) }

	service, err := orders.NewService(store, store, store,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		orders.WithNotifier(notifier),
		orders.WithProducer(producer),
		orders.WithClock(clock),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{store: store, service: service, notifier: notifier, producer: producer}
}

func (f *fixture) table(t *testing.T, number int) domain.Table {
	t.Helper()
	tables, err := f.store.ListTables(context.Background())
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	for _, table := range tables {
		if table.Number == number {
			return table
		}
	}
	t.Fatalf("table %d not found", number)
	return domain.Table{}
}

func intPtr(n int) *int { return &n }

func burgerAndFries(table *int) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		Lines: []orders.LineInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		TableNumber: table,
	}
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.service.Create(ctx, burgerAndFries(intPtr(4)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !order.Total.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected total 25.00, got %s", order.Total)
	}
	if order.Status != domain.OrderStatusAwaiting {
		t.Errorf("expected awaiting, got %s", order.Status)
	}
	if order.TicketNumber != 1 {
		t.Errorf("expected ticket 1, got %d", order.TicketNumber)
	}
	if table := f.table(t, 4); table.Status != domain.TableStatusOccupied || !table.LinkedTo(order.ID) {
		t.Errorf("expected table 4 occupied by order %d, got %+v", order.ID, table)
	}

	for _, status := range []domain.OrderStatus{domain.OrderStatusPreparing, domain.OrderStatusReady, domain.OrderStatusDelivered} {
		order, err = f.service.Transition(ctx, order.ID, status)
		if err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
		if order.Status != status {
			t.Errorf("expected %s, got %s", status, order.Status)
		}
		if status != domain.OrderStatusDelivered && f.table(t, 4).Status != domain.TableStatusOccupied {
			t.Errorf("expected table 4 to stay occupied while %s", status)
		}
	}

	if table := f.table(t, 4); table.Status != domain.TableStatusFree || table.OrderID != nil {
		t.Errorf("expected table 4 free and unlinked, got %+v", table)
	}

	_, err = f.service.Transition(ctx, order.ID, domain.OrderStatusPreparing)
	var terr *domain.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected transition error, got %v", err)
	}
	if terr.From != domain.OrderStatusDelivered {
		t.Errorf("expected from delivered, got %s", terr.From)
	}

	stored, err := f.service.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.OrderStatusDelivered {
		t.Errorf("expected status unchanged, got %s", stored.Status)
	}
	if !stored.Total.Equal(domain.SumLines(stored.Lines)) {
		t.Errorf("total %s does not match lines", stored.Total)
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("empty lines is a validation error and changes nothing", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Create(ctx, orders.CreateOrderInput{TableNumber: intPtr(4)})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}

		all, _ := f.service.List(ctx, orders.ListFilter{})
		if len(all) != 0 {
			t.Errorf("expected no orders, got %d", len(all))
		}
		if f.table(t, 4).Status != domain.TableStatusFree {
			t.Error("expected table 4 untouched")
		}
		if events := f.notifier.take(); len(events) != 0 {
			t.Errorf("expected no events, got %d", len(events))
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name    string
			in      orders.CreateOrderInput
			wantErr error
		}{
			{"unavailable product", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 3, Quantity: 1}}}, domain.ErrValidation},
			{"zero quantity", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 0}}}, domain.ErrValidation},
			{"quantity above the limit", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: domain.MaxLineQuantity + 1}}}, domain.ErrValidation},
			{"huge quantity", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 1_000_000_000_000_000}}}, domain.ErrValidation},
			{"unknown origin", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 1}}, Origin: "drone"}, domain.ErrValidation},
			{"non positive table", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 1}}, TableNumber: intPtr(0)}, domain.ErrValidation},
			{"unknown product", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 99, Quantity: 1}}}, domain.ErrNotFound},
			{"unknown table", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 1}}, TableNumber: intPtr(40)}, domain.ErrNotFound},
			{"unknown client", orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 1}}, ClientID: new(int64)}, domain.ErrNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := f.service.Create(ctx, tt.in); !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}

		all, _ := f.service.List(ctx, orders.ListFilter{})
		if len(all) != 0 {
			t.Errorf("expected no orders, got %d", len(all))
		}
	})

	t.Run("total beyond what can be stored", func(t *testing.T) {
		f := newFixture(t)
		f.store.AddProduct(domain.Product{ID: 4, Name: "Yacht", Price: domain.MaxOrderTotal, Available: true})

		_, err := f.service.Create(ctx, orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 4, Quantity: 2}}})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}

		if _, err := f.service.Create(ctx, orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 4, Quantity: 1}}}); err != nil {
			t.Errorf("expected the maximum total to be accepted, got %v", err)
		}
	})

	t.Run("occupied table is a conflict", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.service.Create(ctx, burgerAndFries(intPtr(2)))
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		_, err = f.service.Create(ctx, burgerAndFries(intPtr(2)))
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}

		all, _ := f.service.List(ctx, orders.ListFilter{})
		if len(all) != 1 {
			t.Errorf("expected only the first order, got %d", len(all))
		}
		if !f.table(t, 2).LinkedTo(first.ID) {
			t.Error("expected table 2 to stay with the first order")
		}
	})

	t.Run("snapshots catalog data", func(t *testing.T) {
		f := newFixture(t)
		clientID := int64(9)

		order, err := f.service.Create(ctx, orders.CreateOrderInput{
			Lines:    []orders.LineInput{{ProductID: 1, Quantity: 1, Note: "  no onions "}},
			ClientID: &clientID,
			Origin:   domain.OriginKiosk,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		line := order.Lines[0]
		if line.ProductName != "Burger" || !line.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
			t.Errorf("unexpected line snapshot %+v", line)
		}
		if line.Note != "no onions" {
			t.Errorf("expected trimmed note, got %q", line.Note)
		}
		if order.ClientName != "Ana" {
			t.Errorf("expected client name, got %q", order.ClientName)
		}
		if order.Origin != domain.OriginKiosk {
			t.Errorf("expected kiosk origin, got %s", order.Origin)
		}

		f.store.AddProduct(domain.Product{ID: 1, Name: "Burger", Price: decimal.RequireFromString("12.00"), Available: true})
		stored, _ := f.service.Get(ctx, order.ID)
		if !stored.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
			t.Error("expected the stored price to ignore later catalog changes")
		}
	})

	t.Run("concurrent creates get distinct ticket numbers", func(t *testing.T) {
		f := newFixture(t)
		const n = 20

		var wg sync.WaitGroup
		numbers := make(chan int, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				order, err := f.service.Create(ctx, burgerAndFries(nil))
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				numbers <- order.TicketNumber
			}()
		}
		wg.Wait()
		close(numbers)

		seen := make(map[int]bool)
		for number := range numbers {
			if seen[number] {
				t.Errorf("ticket number %d assigned twice", number)
			}
			seen[number] = true
		}
		for i := 1; i <= n; i++ {
			if !seen[i] {
				t.Errorf("ticket number %d missing", i)
			}
		}
	})

	t.Run("ticket numbers restart each business day", func(t *testing.T) {
		store := memory.New()
		store.AddProduct(domain.Product{ID: 1, Name: "Burger", Price: decimal.RequireFromString("10.00"), Available: true})

		now := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
		service, err := orders.NewService(store, store, store,
			slog.New(slog.NewTextHandler(io.Discard, nil)),
			orders.WithClock(func() time.Time { return now }),
			orders.WithLocation(time.FixedZone("BRT", -3*60*60)),
		)
		if err != nil {
			t.Fatalf("new service: %v", err)
		}

		in := orders.CreateOrderInput{Lines: []orders.LineInput{{ProductID: 1, Quantity: 1}}}
		first, _ := service.Create(ctx, in)
		now = now.Add(2 * time.Hour)
		second, _ := service.Create(ctx, in)
		now = now.Add(2 * time.Hour)
		third, _ := service.Create(ctx, in)

		if first.TicketNumber != 1 || second.TicketNumber != 2 || third.TicketNumber != 1 {
			t.Errorf("expected 1 2 1, got %d %d %d", first.TicketNumber, second.TicketNumber, third.TicketNumber)
		}
	})
}

func TestService_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("illegal transitions leave the order untouched", func(t *testing.T) {
		f := newFixture(t)
		order, _ := f.service.Create(ctx, burgerAndFries(nil))
		f.notifier.take()

		for _, target := range []domain.OrderStatus{domain.OrderStatusReady, domain.OrderStatusDelivered, domain.OrderStatusAwaiting, "bogus"} {
			if _, err := f.service.Transition(ctx, order.ID, target); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("awaiting -> %s: expected invalid transition, got %v", target, err)
			}
		}

		stored, _ := f.service.Get(ctx, order.ID)
		if stored.Status != domain.OrderStatusAwaiting {
			t.Errorf("expected awaiting, got %s", stored.Status)
		}
		if events := f.notifier.take(); len(events) != 0 {
			t.Errorf("expected no events for failed transitions, got %d", len(events))
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.service.Transition(ctx, 404, domain.OrderStatusPreparing); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("racing transitions have exactly one winner", func(t *testing.T) {
		f := newFixture(t)

		for range 25 {
			order, err := f.service.Create(ctx, burgerAndFries(nil))
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			var (
				wg        sync.WaitGroup
				successes int
				invalid   int
				mu        sync.Mutex
			)
			for _, target := range []domain.OrderStatus{domain.OrderStatusPreparing, domain.OrderStatusPreparing} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.service.Transition(ctx, order.ID, target)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, domain.ErrInvalidTransition):
						invalid++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if successes != 1 || invalid != 1 {
				t.Fatalf("expected one success and one invalid transition, got %d and %d", successes, invalid)
			}
		}
	})

	t.Run("cancel and deliver race for a ready order", func(t *testing.T) {
		f := newFixture(t)
		order, _ := f.service.Create(ctx, burgerAndFries(intPtr(3)))
		_, _ = f.service.Transition(ctx, order.ID, domain.OrderStatusPreparing)
		_, _ = f.service.Transition(ctx, order.ID, domain.OrderStatusReady)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.service.Cancel(ctx, order.ID, "customer left")
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = f.service.Finalize(ctx, order.ID, "card")
		}()
		wg.Wait()

		if (errs[0] == nil) == (errs[1] == nil) {
			t.Fatalf("expected exactly one winner, got %v and %v", errs[0], errs[1])
		}
		if f.table(t, 3).Status != domain.TableStatusFree {
			t.Error("expected table 3 freed by the winner")
		}
	})
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("records the reason and frees the table", func(t *testing.T) {
		f := newFixture(t)
		in := burgerAndFries(intPtr(5))
		in.Note = "window seat"
		order, _ := f.service.Create(ctx, in)

		cancelled, err := f.service.Cancel(ctx, order.ID, "kitchen closed")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}

		if cancelled.Status != domain.OrderStatusCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}
		stored, _ := f.service.Get(ctx, order.ID)
		if reason, ok := domain.CancellationReason(stored.Note); !ok || reason != "kitchen closed" {
			t.Errorf("expected recoverable reason, got %q", stored.Note)
		}
		if f.table(t, 5).Status != domain.TableStatusFree {
			t.Error("expected table 5 freed")
		}
	})

	t.Run("terminal orders cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		order, _ := f.service.Create(ctx, burgerAndFries(nil))
		_, _ = f.service.Cancel(ctx, order.ID, "")

		if _, err := f.service.Cancel(ctx, order.ID, "again"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})
}

func TestService_Finalize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, _ := f.service.Create(ctx, burgerAndFries(intPtr(1)))

	if _, err := f.service.Finalize(ctx, order.ID, "card"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected invalid transition from awaiting, got %v", err)
	}

	_, _ = f.service.Transition(ctx, order.ID, domain.OrderStatusPreparing)
	_, _ = f.service.Transition(ctx, order.ID, domain.OrderStatusReady)

	delivered, err := f.service.Finalize(ctx, order.ID, "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if delivered.Status != domain.OrderStatusDelivered {
		t.Errorf("expected delivered, got %s", delivered.Status)
	}
	if delivered.PaymentMethod != domain.DefaultPaymentMethod {
		t.Errorf("expected default payment method, got %q", delivered.PaymentMethod)
	}
	if f.table(t, 1).Status != domain.TableStatusFree {
		t.Error("expected table 1 freed")
	}
}

func eventNames(events []published) map[string][]string {
	names := make(map[string][]string)
	for _, e := range events {
		for _, g := range e.groups {
			names[g] = append(names[g], e.event)
		}
	}
	return names
}

func TestService_Events(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, _ := f.service.Create(ctx, burgerAndFries(intPtr(6)))
	created := eventNames(f.notifier.take())

	assertEvents(t, "create", created, map[string][]string{
		domain.GroupAll:       {domain.EventOrderCreated, domain.EventTableUpdated},
		domain.GroupKitchen:   {domain.EventKitchenOrderCreated},
		domain.GroupDashboard: {domain.EventDashboardUpdate},
	})

	_, _ = f.service.Transition(ctx, order.ID, domain.OrderStatusPreparing)
	assertEvents(t, "preparing", eventNames(f.notifier.take()), map[string][]string{
		domain.GroupAll: {domain.EventOrderStatusChanged},
	})

	_, _ = f.service.Transition(ctx, order.ID, domain.OrderStatusReady)
	assertEvents(t, "ready", eventNames(f.notifier.take()), map[string][]string{
		domain.GroupAll:     {domain.EventOrderStatusChanged},
		domain.GroupCashier: {domain.EventOrderReady},
	})

	_, _ = f.service.Finalize(ctx, order.ID, "card")
	assertEvents(t, "delivered", eventNames(f.notifier.take()), map[string][]string{
		domain.GroupAll:       {domain.EventOrderStatusChanged, domain.EventOrderDelivered, domain.EventTableUpdated},
		domain.GroupDashboard: {domain.EventDashboardUpdate},
	})

	t.Run("status change carries the previous status", func(t *testing.T) {
		other, _ := f.service.Create(ctx, burgerAndFries(nil))
		f.notifier.take()
		_, _ = f.service.Cancel(ctx, other.ID, "")

		for _, e := range f.notifier.take() {
			if e.event != domain.EventOrderStatusChanged {
				continue
			}
			change, ok := e.payload.(domain.StatusChange)
			if !ok {
				t.Fatalf("expected StatusChange payload, got %T", e.payload)
			}
			if change.PreviousStatus != domain.OrderStatusAwaiting || change.Order.Status != domain.OrderStatusCancelled {
				t.Errorf("unexpected change %s -> %s", change.PreviousStatus, change.Order.Status)
			}
			return
		}
		t.Error("no status change event")
	})

	t.Run("lifecycle events are produced after commit", func(t *testing.T) {
		f.producer.mu.Lock()
		defer f.producer.mu.Unlock()

		var types []string
		for _, e := range f.producer.events {
			if e.OrderID == order.ID {
				types = append(types, e.Type)
			}
		}
		want := []string{
			domain.LifecycleOrderCreated,
			domain.LifecycleStatusChanged,
			domain.LifecycleStatusChanged,
			domain.LifecycleOrderDelivered,
		}
		if len(types) != len(want) {
			t.Fatalf("expected %v, got %v", want, types)
		}
		for i := range want {
			if types[i] != want[i] {
				t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
			}
		}
	})
}

func TestService_ProducerFailureDoesNotFailTheOperation(t *testing.T) {
	f := newFixture(t)
	f.producer.err = errors.New("broker down")

	if _, err := f.service.Create(context.Background(), burgerAndFries(nil)); err != nil {
		t.Errorf("expected create to succeed, got %v", err)
	}
}

func assertEvents(t *testing.T, step string, got, want map[string][]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: expected groups %v, got %v", step, want, got)
		return
	}
	for group, events := range want {
		if len(got[group]) != len(events) {
			t.Errorf("%s: group %s expected %v, got %v", step, group, events, got[group])
			continue
		}
		for i := range events {
			if got[group][i] != events[i] {
				t.Errorf("%s: group %s expected %v, got %v", step, group, events, got[group])
				break
			}
		}
	}
}

func TestService_Tables(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	table, err := f.service.ReserveTable(ctx, 5)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if table.Status != domain.TableStatusReserved {
		t.Errorf("expected reserved, got %s", table.Status)
	}

	if _, err := f.service.ReserveTable(ctx, 5); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict reserving twice, got %v", err)
	}
	if _, err := f.service.Create(ctx, burgerAndFries(intPtr(5))); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict seating at a reserved table, got %v", err)
	}

	if table, err = f.service.ReleaseReservation(ctx, 5); err != nil || table.Status != domain.TableStatusFree {
		t.Fatalf("expected free table, got %+v, %v", table, err)
	}
	if _, err := f.service.ReleaseReservation(ctx, 5); err != nil {
		t.Errorf("expected releasing a free table to be a no-op, got %v", err)
	}

	if _, err := f.service.Create(ctx, burgerAndFries(intPtr(5))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.ReleaseReservation(ctx, 5); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict freeing an occupied table, got %v", err)
	}

	tables, _ := f.service.Tables(ctx)
	if len(tables) != 6 || tables[0].Number != 1 {
		t.Errorf("unexpected tables %+v", tables)
	}
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, _ := f.service.Create(ctx, burgerAndFries(nil))
	b, _ := f.service.Create(ctx, burgerAndFries(nil))
	_, _ = f.service.Transition(ctx, b.ID, domain.OrderStatusPreparing)

	awaiting, err := f.service.List(ctx, orders.ListFilter{Status: domain.OrderStatusAwaiting})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(awaiting) != 1 || awaiting[0].ID != a.ID {
		t.Errorf("expected only order %d, got %+v", a.ID, awaiting)
	}

	limited, _ := f.service.List(ctx, orders.ListFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != b.ID {
		t.Errorf("expected newest order first, got %+v", limited)
	}

	if _, err := f.service.List(ctx, orders.ListFilter{Status: "lost"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
