// Command sagademo runs a batch of orders through the choreographed saga and
// prints the resulting order statuses.
//
// Usage:
//
//	sagademo [-config choreo.yaml] [-orders 10] [-trace] [-trace-format cloudevents|json]
//
// With -trace every envelope is printed to stdout as one JSON line, either a
// CloudEvent or the envelope wire format. Setting metrics.addr serves /metrics while the demo runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/config"
	"github.com/fxsml/choreo/internal/logging"
	"github.com/fxsml/choreo/saga"
	"github.com/fxsml/choreo/store"
	"github.com/fxsml/choreo/store/redisstore"
)

type options struct {
	configPath  string
	orders      int
	trace       bool
	traceFormat string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flag.IntVar(&opts.orders, "orders", 10, "number of demo orders")
	flag.BoolVar(&opts.trace, "trace", false, "print every event to stdout")
	flag.StringVar(&opts.traceFormat, "trace-format", traceCloudEvents, "trace encoding: cloudevents or json")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "sagademo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	reservations, closeStore, err := openReservations(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sys, err := saga.New(saga.Config{
		Bus: bus.Config{
			MaxConcurrency: cfg.Bus.MaxConcurrency,
			Metrics:        bus.NewMetrics(reg),
		},
		Reservations:   reservations,
		ProductID:      cfg.Inventory.ProductID,
		Decider:        saga.Probability(cfg.Payment.ApprovalRate),
		Amount:         cfg.Payment.Amount,
		HandlerTimeout: cfg.Bus.HandlerTimeout,
		LogDeliveries:  cfg.Bus.LogDeliveries,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer sys.Shutdown()

	if opts.trace {
		tr, err := newTracer(stdout, opts.traceFormat)
		if err != nil {
			return err
		}
		if err := sys.Subscribe("trace", tr); err != nil {
			return err
		}
	}

	ids := make([]string, 0, opts.orders)
	for i := range opts.orders {
		id := fmt.Sprintf("order-%d", i+1)
		if err := sys.CreateOrder(ctx, id); err != nil {
			return err
		}
		ids = append(ids, id)
	}

	drainCtx, cancel := context.WithTimeout(ctx, cfg.Bus.DrainTimeout)
	defer cancel()
	if err := sys.Drain(drainCtx); err != nil {
		logger.Warn("sagas did not settle", "error", err, "inflight", sys.Bus().InFlight())
	}

	return report(ctx, stdout, sys, ids, cfg.Inventory.ProductID)
}

func openReservations(ctx context.Context, cfg config.Config) (store.ReservationStore, func(), error) {
	if !cfg.Redis.Enabled() {
		return store.NewReservations(cfg.Inventory.Capacity), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	st := redisstore.New(client, redisstore.Config{
		Capacity:  cfg.Inventory.Capacity,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	return st, func() { _ = client.Close() }, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func report(ctx context.Context, w io.Writer, sys *saga.System, ids []string, productID string) error {
	counts := make(map[store.Status]int)
	unsettled := 0
	for _, id := range ids {
		status, ok := sys.Status(id)
		if !ok {
			status = "UNKNOWN"
		}
		if !status.Terminal() {
			unsettled++
		}
		counts[status]++
		fmt.Fprintf(w, "%-12s %s\n", id, status)
	}

	statuses := make([]store.Status, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	slices.Sort(statuses)
	fmt.Fprintln(w)
	for _, s := range statuses {
		fmt.Fprintf(w, "%-20s %d\n", s, counts[s])
	}

	reserved, err := sys.Reserved(ctx, productID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-20s %d\n", "unsettled", unsettled)
	fmt.Fprintf(w, "%-20s %d\n", "reserved "+productID, reserved)
	return nil
}
