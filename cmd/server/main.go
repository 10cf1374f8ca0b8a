package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/tableside/internal/catalog"
	"github.com/joao-fontenele/tableside/internal/config"
	"github.com/joao-fontenele/tableside/internal/domain"
	"github.com/joao-fontenele/tableside/internal/messaging"
	"github.com/joao-fontenele/tableside/internal/notify"
	"github.com/joao-fontenele/tableside/internal/orders"
	"github.com/joao-fontenele/tableside/internal/printer"
	"github.com/joao-fontenele/tableside/internal/storage/memory"
	"github.com/joao-fontenele/tableside/internal/telemetry"
	"github.com/joao-fontenele/tableside/internal/worker"
)

const serviceName = "tableside"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	store, products, clients, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	printerSettings, err := config.LoadPrinterSettings(cfg.PrintersFile, logger)
	if err != nil {
		return err
	}
	dispatcher, err := printer.NewDispatcher(printerSettings, logger,
		printer.WithTimeout(cfg.PrintTimeout),
		printer.WithLocation(loc),
	)
	if err != nil {
		return err
	}

	hub, err := notify.NewHub(logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var notifier orders.Notifier = hub
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:                  cfg.RedisAddr,
			ContextTimeoutEnabled: true,
		})
		defer func() { _ = client.Close() }()

		bridge := notify.NewRedisBridge(hub, client, cfg.RedisChannel, logger)
		g.Go(func() error { return bridge.Run(ctx) })
		notifier = bridge
		logger.Info("relaying notifications through redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	}

	var producer orders.EventProducer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		p := messaging.NewProducer(brokers, cfg.LifecycleTopic)
		defer func() { _ = p.Close() }()
		producer = p
		logger.Info("publishing lifecycle events to kafka", "brokers", brokers, "topic", cfg.LifecycleTopic)
	} else {
		queue := worker.NewLocalQueue(256, worker.NewPrintHandler(dispatcher, logger).Handle, logger)
		g.Go(func() error { return queue.Run(ctx) })
		producer = queue
		logger.Info("no kafka brokers, auto printing in process")
	}

	service, err := orders.NewService(store, products, clients, logger,
		orders.WithNotifier(notifier),
		orders.WithProducer(producer),
		orders.WithLocation(loc),
	)
	if err != nil {
		return err
	}

	ordersHandler := orders.NewHandler(service, dispatcher, logger)
	printerHandler := printer.NewHandler(dispatcher, logger)
	wsHandler := notify.NewHandler(hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(ordersHandler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(ordersHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(ordersHandler.HandleUpdateStatus))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(ordersHandler.HandleCancel))
	mux.HandleFunc("POST /orders/{id}/finalize", telemetry.WithHTTPRoute(ordersHandler.HandleFinalize))
	mux.HandleFunc("POST /orders/{id}/print/{area}", telemetry.WithHTTPRoute(ordersHandler.HandlePrint))
	mux.HandleFunc("GET /tables", telemetry.WithHTTPRoute(ordersHandler.HandleListTables))
	mux.HandleFunc("POST /tables/{number}/reservation", telemetry.WithHTTPRoute(ordersHandler.HandleReserveTable))
	mux.HandleFunc("DELETE /tables/{number}/reservation", telemetry.WithHTTPRoute(ordersHandler.HandleReleaseReservation))
	mux.HandleFunc("GET /printers/{area}/test", telemetry.WithHTTPRoute(printerHandler.HandleTest))
	mux.HandleFunc("GET /ws", telemetry.WithHTTPRoute(wsHandler.ServeHTTP))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(mux, serviceName, otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting tableside server", "port", cfg.Port, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore returns the order store with its catalog and client lookups.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (orders.Store, orders.Catalog, orders.Clients, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using the in-memory store, orders are lost on restart")
		store := memory.New()
		seedMemory(store)
		return store, store, store, func() {}, nil
	}

	db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	repo := catalog.NewRepository(db)
	return orders.NewOrderRepository(db), repo, repo, func() { _ = db.Close() }, nil
}

// seedMemory mirrors the rows the seed migration inserts.
func seedMemory(store *memory.Store) {
	for n := 1; n <= 12; n++ {
		store.AddTables(n)
	}

	for i, p := range []struct {
		name      string
		price     string
		available bool
	}{
		{"Burger", "10.00", true},
		{"Fries", "5.00", true},
		{"Caesar Salad", "12.50", true},
		{"Soda", "4.00", true},
		{"Espresso", "3.50", true},
		{"Lobster", "89.00", false},
	} {
		store.AddProduct(domain.Product{
			ID:        int64(i + 1),
			Name:      p.name,
			Price:     decimal.RequireFromString(p.price),
			Available: p.available,
		})
	}
}
