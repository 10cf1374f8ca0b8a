package printer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/tableside/internal/domain"
)

var (
	tracer = otel.Tracer("printer")
	meter  = otel.Meter("printer")
)

const DefaultTimeout = 5 * time.Second

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Dispatcher drives the configured printers over the raw TCP line printer
// protocol (port 9100). It never returns an error: anything that keeps a
// ticket from reaching paper yields a simulated Result instead.
type Dispatcher struct {
	settings SettingsSource
	logger   *slog.Logger
	timeout  time.Duration
	location *time.Location
	dial     dialFunc

	jobs metric.Int64Counter
}

type DispatcherOption func(*Dispatcher)

func WithTimeout(d time.Duration) DispatcherOption {
	return func(p *Dispatcher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLocation sets the zone ticket timestamps are printed in.
func WithLocation(loc *time.Location) DispatcherOption {
	return func(p *Dispatcher) { p.location = loc }
}

func NewDispatcher(settings SettingsSource, logger *slog.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		settings: settings,
		logger:   logger,
		timeout:  DefaultTimeout,
		location: time.UTC,
		dial:     (&net.Dialer{}).DialContext,
	}
	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.jobs, err = meter.Int64Counter("printer.jobs",
		metric.WithDescription("Print jobs by area and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create printer.jobs counter: %w", err)
	}

	return d, nil
}

// Print formats the order for the area and sends it. The kitchen gets the
// ticket, the cashier gets the receipt.
func (d *Dispatcher) Print(ctx context.Context, area Area, order domain.Order, paymentMethod string) Result {
	settings, err := d.settings.Settings(area)
	if err != nil {
		d.logger.Error("failed to load printer settings", "error", err, "area", area)
	}
	settings = settings.WithDefaults()

	layout := LayoutFor(settings, d.location)
	var text string
	if area == AreaCashier {
		text = FormatReceipt(order, paymentMethod, layout)
	} else {
		text = FormatKitchenTicket(order, layout)
	}

	if err != nil {
		return d.simulate(ctx, area, text, fmt.Sprintf("printer settings unavailable: %v", err))
	}
	return d.send(ctx, area, settings, text)
}

func (d *Dispatcher) PrintKitchenTicket(ctx context.Context, order domain.Order) Result {
	return d.Print(ctx, AreaKitchen, order, "")
}

func (d *Dispatcher) PrintReceipt(ctx context.Context, order domain.Order) Result {
	return d.Print(ctx, AreaCashier, order, order.PaymentMethod)
}

// Send writes already formatted text to the area's device.
func (d *Dispatcher) Send(ctx context.Context, area Area, text string) Result {
	settings, err := d.settings.Settings(area)
	if err != nil {
		d.logger.Error("failed to load printer settings", "error", err, "area", area)
		return d.simulate(ctx, area, text, fmt.Sprintf("printer settings unavailable: %v", err))
	}
	return d.send(ctx, area, settings.WithDefaults(), text)
}

// AutoPrint reports whether tickets for area print without being asked.
func (d *Dispatcher) AutoPrint(area Area) bool {
	settings, err := d.settings.Settings(area)
	if err != nil {
		return false
	}
	return settings.Enabled && settings.AutoPrint
}

func (d *Dispatcher) send(ctx context.Context, area Area, s DeviceSettings, text string) Result {
	ctx, span := tracer.Start(ctx, "printer.Send", trace.WithAttributes(
		attribute.String("printer.area", string(area)),
		attribute.String("printer.kind", s.Kind),
	))
	defer span.End()

	if !s.Enabled {
		return d.simulate(ctx, area, text, "printer disabled")
	}
	if s.Connection != ConnectionNetwork {
		return d.simulate(ctx, area, text, fmt.Sprintf("unsupported connection %q", s.Connection))
	}
	if s.Host == "" {
		return d.simulate(ctx, area, text, "printer host not configured")
	}
	cs, ok := CommandSetFor(s.Kind)
	if !ok {
		return d.simulate(ctx, area, text, fmt.Sprintf("unsupported device kind %q", s.Kind))
	}

	payload, err := Encode(cs, s, text)
	if err != nil {
		span.RecordError(err)
		return d.simulate(ctx, area, text, err.Error())
	}

	n, err := d.write(ctx, s.Address(), payload)
	if err != nil {
		span.RecordError(err)
		d.logger.Warn("printer unreachable", "error", err, "area", area, "address", s.Address())
		return d.simulate(ctx, area, text, fmt.Sprintf("printer unreachable: %v", err))
	}

	d.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("area", string(area)),
		attribute.String("outcome", "printed"),
	))
	d.logger.Info("ticket printed", "area", area, "address", s.Address(), "bytes", n)
	return Result{Area: area, Text: text, Message: "printed", BytesWritten: n}
}

func (d *Dispatcher) write(ctx context.Context, address string, payload []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, err := d.dial(ctx, "tcp", address)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	return conn.Write(payload)
}

func (d *Dispatcher) simulate(ctx context.Context, area Area, text, reason string) Result {
	d.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("area", string(area)),
		attribute.String("outcome", "simulated"),
	))
	d.logger.Info("print simulated", "area", area, "reason", reason)
	return Result{Area: area, Simulated: true, Text: text, Message: reason}
}

// Test checks that the area's device accepts connections.
func (d *Dispatcher) Test(ctx context.Context, area Area) Probe {
	settings, err := d.settings.Settings(area)
	if err != nil {
		return Probe{Message: fmt.Sprintf("printer settings unavailable: %v", err)}
	}
	settings = settings.WithDefaults()

	switch {
	case !settings.Enabled:
		return Probe{Message: "printer disabled"}
	case settings.Connection != ConnectionNetwork:
		return Probe{Message: fmt.Sprintf("unsupported connection %q", settings.Connection)}
	case settings.Host == "":
		return Probe{Message: "printer host not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, err := d.dial(ctx, "tcp", settings.Address())
	if err != nil {
		return Probe{Message: fmt.Sprintf("connection to %s failed: %v", settings.Address(), err)}
	}
	_ = conn.Close()

	return Probe{Connected: true, Message: "connected to " + settings.Address()}
}
