package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/tables"
)

var (
	tracer = otel.Tracer("orders")
	meter  = otel.Meter("orders")
)

// Tx is the write set of one atomic order operation. Reads through LockOrder
// and LockTable hold their rows until the transaction ends.
type Tx interface {
	tables.Store
	LockOrder(ctx context.Context, id int64) (*domain.Order, error)
	NextTicketNumber(ctx context.Context, businessDay string) (int, error)
	InsertOrder(ctx context.Context, order *domain.Order, businessDay string) error
	// UpdateOrder persists status, note and payment method, provided the
	// stored status still equals expected.
	UpdateOrder(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error
}

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
}

type ListFilter struct {
	Status domain.OrderStatus
	Limit  int
}

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Clients interface {
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
}

// Notifier delivers a real-time event to every subscriber of the named
// groups. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, groups []string, event string, payload any)
}

// EventProducer appends a committed lifecycle event to a durable stream.
type EventProducer interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service struct {
	store    Store
	catalog  Catalog
	clients  Clients
	notifier Notifier
	producer EventProducer
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time

	created     metric.Int64Counter
	transitions metric.Int64Counter
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithProducer(p EventProducer) Option {
	return func(s *Service) { s.producer = p }
}

// WithLocation sets the time zone that decides the business day ticket
// numbers restart on.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, catalog Catalog, clients Clients, logger *slog.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		store:    store,
		catalog:  catalog,
		clients:  clients,
		logger:   logger,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.created, err = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders created, by origin"))
	if err != nil {
		return nil, fmt.Errorf("create orders.created counter: %w", err)
	}
	s.transitions, err = meter.Int64Counter("orders.transitions",
		metric.WithDescription("Committed order status transitions"))
	if err != nil {
		return nil, fmt.Errorf("create orders.transitions counter: %w", err)
	}

	return s, nil
}

type LineInput struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note,omitempty"`
}

type CreateOrderInput struct {
	Lines       []LineInput   `json:"lines"`
	TableNumber *int          `json:"table_number,omitempty"`
	ClientID    *int64        `json:"client_id,omitempty"`
	Note        string        `json:"note,omitempty"`
	Origin      domain.Origin `json:"origin"`
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Create")
	defer span.End()

	order, err := s.buildOrder(ctx, in)
	if err != nil {
		return nil, fail(span, err)
	}

	day := order.CreatedAt.In(s.location).Format(time.DateOnly)
	var table *domain.Table

	err = s.store.InTx(ctx, func(tx Tx) error {
		number, err := tx.NextTicketNumber(ctx, day)
		if err != nil {
			return fmt.Errorf("next ticket number: %w", err)
		}
		order.TicketNumber = number

		if err := tx.InsertOrder(ctx, order, day); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if order.TableNumber != nil {
			table, err = tables.Occupy(ctx, tx, *order.TableNumber, order.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.Int("order.ticket_number", order.TicketNumber),
	)
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", string(order.Origin))))
	s.logger.Info("order created", "order_id", order.ID, "ticket_number", order.TicketNumber,
		"total", order.Total.StringFixed(2), "table", tableLabel(order.TableNumber))

	s.notify(ctx, []string{domain.GroupAll}, domain.EventOrderCreated, order)
	s.notify(ctx, []string{domain.GroupKitchen}, domain.EventKitchenOrderCreated, order)
	if table != nil {
		s.notify(ctx, []string{domain.GroupAll}, domain.EventTableUpdated, table)
	}
	s.notify(ctx, []string{domain.GroupDashboard}, domain.EventDashboardUpdate, order)
	s.produce(ctx, domain.LifecycleOrderCreated, order, "")

	return order, nil
}

// buildOrder validates the input and snapshots names and prices from the
// catalog. Prices never come from the caller.
func (s *Service) buildOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ValidationError("an order needs at least one line")
	}

	origin := in.Origin
	if origin == "" {
		origin = domain.OriginStaff
	}
	if !origin.Valid() {
		return nil, domain.ValidationError("unknown origin %q", origin)
	}

	if in.TableNumber != nil && *in.TableNumber <= 0 {
		return nil, domain.ValidationError("table number must be positive")
	}

	lines := make([]domain.OrderLine, 0, len(in.Lines))
	for i, li := range in.Lines {
		if li.Quantity < 1 {
			return nil, domain.ValidationError("line %d: quantity must be at least 1", i+1)
		}
		if li.Quantity > domain.MaxLineQuantity {
			return nil, domain.ValidationError("line %d: quantity must be at most %d", i+1, domain.MaxLineQuantity)
		}

		product, err := s.catalog.GetProduct(ctx, li.ProductID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if !product.Available {
			return nil, domain.ValidationError("line %d: product %q is unavailable", i+1, product.Name)
		}

		lines = append(lines, domain.OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    li.Quantity,
			UnitPrice:   product.Price,
			Note:        strings.TrimSpace(li.Note),
		})
	}

	now := s.now().UTC()
	order := &domain.Order{
		Status:      domain.OrderStatusAwaiting,
		TableNumber: in.TableNumber,
		ClientID:    in.ClientID,
		Note:        strings.TrimSpace(in.Note),
		Origin:      origin,
		Lines:       lines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order.Recalculate()
	if order.Total.GreaterThan(domain.MaxOrderTotal) {
		return nil, domain.ValidationError("order total %s exceeds %s", order.Total.StringFixed(2), domain.MaxOrderTotal.StringFixed(2))
	}

	if in.ClientID != nil {
		client, err := s.clients.GetClient(ctx, *in.ClientID)
		if err != nil {
			return nil, err
		}
		order.ClientName = client.Name
	}

	return order, nil
}

// Transition moves an order to target. The current status is read under
// the order's row lock, so of two racing requests the later one is checked
// against the status the earlier one committed.
func (s *Service) Transition(ctx context.Context, id int64, target domain.OrderStatus) (*domain.Order, error) {
	return s.transition(ctx, id, target, nil)
}

// Cancel cancels an order that has not reached a terminal status. A
// non-empty reason is kept as the last line of the note.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*domain.Order, error) {
	return s.transition(ctx, id, domain.OrderStatusCancelled, func(o *domain.Order) {
		o.Note = domain.AppendCancellationReason(o.Note, reason)
	})
}

// Finalize delivers a ready order and records how it was paid.
func (s *Service) Finalize(ctx context.Context, id int64, paymentMethod string) (*domain.Order, error) {
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		paymentMethod = domain.DefaultPaymentMethod
	}
	return s.transition(ctx, id, domain.OrderStatusDelivered, func(o *domain.Order) {
		o.PaymentMethod = paymentMethod
	})
}

func (s *Service) transition(ctx context.Context, id int64, target domain.OrderStatus, mutate func(*domain.Order)) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	var (
		order    *domain.Order
		previous domain.OrderStatus
		freed    *domain.Table
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}

		if !current.Status.CanTransitionTo(target) {
			return &domain.TransitionError{OrderID: id, From: current.Status, To: target}
		}

		previous = current.Status
		current.Status = target
		current.UpdatedAt = s.now().UTC()
		if mutate != nil {
			mutate(current)
		}

		if err := tx.UpdateOrder(ctx, current, previous); err != nil {
			return err
		}

		if target.Terminal() && current.TableNumber != nil {
			table, changed, err := tables.Release(ctx, tx, *current.TableNumber, current.ID)
			if err != nil {
				return fmt.Errorf("release table %d: %w", *current.TableNumber, err)
			}
			if changed {
				freed = table
			}
		}

		order = current
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(previous)),
		attribute.String("to", string(target)),
	))
	s.logger.Info("order status changed", "order_id", order.ID, "from", previous, "to", order.Status,
		"table_freed", freed != nil)

	change := domain.StatusChange{Order: *order, PreviousStatus: previous}
	s.notify(ctx, []string{domain.GroupAll}, domain.EventOrderStatusChanged, change)

	switch target {
	case domain.OrderStatusReady:
		s.notify(ctx, []string{domain.GroupCashier}, domain.EventOrderReady, order)
	case domain.OrderStatusDelivered:
		s.notify(ctx, []string{domain.GroupAll}, domain.EventOrderDelivered, order)
	case domain.OrderStatusCancelled:
		s.notify(ctx, []string{domain.GroupAll}, domain.EventOrderCancelled, order)
	}

	if freed != nil {
		s.notify(ctx, []string{domain.GroupAll}, domain.EventTableUpdated, freed)
	}
	if target.Terminal() {
		s.notify(ctx, []string{domain.GroupDashboard}, domain.EventDashboardUpdate, change)
	}

	s.produce(ctx, lifecycleType(target), order, previous)

	return order, nil
}

// ReserveTable holds a free table. Reservations go through the service so
// table writes stay serialized with order transitions.
func (s *Service) ReserveTable(ctx context.Context, number int) (*domain.Table, error) {
	var table *domain.Table
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		table, err = tables.Reserve(ctx, tx, number)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("table reserved", "table", number)
	s.notify(ctx, []string{domain.GroupAll}, domain.EventTableUpdated, table)
	return table, nil
}

// ReleaseReservation frees a reserved table. A table occupied by an active
// order can only be freed by that order's terminal transition.
func (s *Service) ReleaseReservation(ctx context.Context, number int) (*domain.Table, error) {
	var table *domain.Table
	err := s.store.InTx(ctx, func(tx Tx) error {
		current, err := tx.LockTable(ctx, number)
		if err != nil {
			return err
		}
		if current.Status == domain.TableStatusOccupied {
			return domain.ConflictError("table %d is occupied by an active order", number)
		}

		table, err = tables.Free(ctx, tx, number)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("table reservation released", "table", number)
	s.notify(ctx, []string{domain.GroupAll}, domain.EventTableUpdated, table)
	return table, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ValidationError("unknown status %q", filter.Status)
	}
	return s.store.ListOrders(ctx, filter)
}

func (s *Service) Tables(ctx context.Context) ([]domain.Table, error) {
	return s.store.ListTables(ctx)
}

func (s *Service) notify(ctx context.Context, groups []string, event string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, groups, event, payload)
}

func (s *Service) produce(ctx context.Context, eventType string, order *domain.Order, previous domain.OrderStatus) {
	if s.producer == nil {
		return
	}

	event := domain.OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		TicketNumber:   order.TicketNumber,
		Status:         order.Status,
		PreviousStatus: previous,
		Order:          *order,
		Timestamp:      order.UpdatedAt,
	}
	if err := s.producer.Publish(ctx, strconv.FormatInt(order.ID, 10), event); err != nil {
		s.logger.Error("failed to publish lifecycle event", "error", err, "order_id", order.ID, "type", eventType)
	}
}

func lifecycleType(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusDelivered:
		return domain.LifecycleOrderDelivered
	case domain.OrderStatusCancelled:
		return domain.LifecycleOrderCancelled
	default:
		return domain.LifecycleStatusChanged
	}
}

func tableLabel(number *int) string {
	if number == nil {
		return "takeaway"
	}
	return strconv.Itoa(*number)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !isClientError(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrInvalidTransition)
}
