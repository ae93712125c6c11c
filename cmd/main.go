package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/handoff/internal/adapters/http/api"
	"github.com/okian/handoff/internal/adapters/http/swagger"
	app "github.com/okian/handoff/internal/app"
	"github.com/okian/handoff/internal/config"
	"github.com/okian/handoff/pkg/logger"
	"github.com/okian/handoff/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	metrics.GetRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cliFlags holds command-line overrides. Only flags the user set are applied.
type cliFlags struct {
	producers   int
	consumers   int
	capacity    int
	items       int
	metricsAddr string
	print       bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, map[string]bool, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("handoff", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&f.producers, "producers", 0, "Number of producers (env: HANDOFF_PRODUCERS)")
	fs.IntVar(&f.consumers, "consumers", 0, "Number of consumers (env: HANDOFF_CONSUMERS)")
	fs.IntVar(&f.capacity, "capacity", 0, "Queue capacity (env: HANDOFF_CAPACITY)")
	fs.IntVar(&f.items, "items", 0, "Items emitted by each producer (env: HANDOFF_ITEMS_PER_PRODUCER)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /healthz, /stats and /metrics on this address (env: HANDOFF_METRICS_ADDR)")
	fs.BoolVar(&f.print, "print", false, "Print each consumer's stream")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

func (f *cliFlags) apply(cfg *config.Config, set map[string]bool) {
	if set["producers"] {
		cfg.Producers = f.producers
	}
	if set["consumers"] {
		cfg.Consumers = f.consumers
	}
	if set["capacity"] {
		cfg.Capacity = f.capacity
	}
	if set["items"] {
		cfg.ItemsPerProducer = f.items
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = f.metricsAddr
	}
}

// run executes one harness run and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, set, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	// Read configuration (defaults -> optional file -> env -> flags), then validate once
	cfg, err := config.Read(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return exitUsage
	}
	flags.apply(cfg, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(stderr)); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging:", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithProducers(cfg.Producers),
		app.WithConsumers(cfg.Consumers),
		app.WithCapacity(cfg.Capacity),
		app.WithItemsPerProducer(cfg.ItemsPerProducer),
	)

	if cfg.MetricsAddr != "" {
		shutdown, err := startOpsServer(ctx, cfg.MetricsAddr, svc, log)
		if err != nil {
			log.Error(ctx, "failed to start ops server", logger.Error(err))
			return exitFailure
		}
		defer shutdown()
	}

	report, err := svc.Run(ctx)
	if report != nil && flags.print {
		printStreams(stdout, report)
	}
	if err != nil {
		return exitFailure
	}

	log.Info(ctx, "handoff complete",
		logger.String("runID", report.RunID),
		logger.Int("produced", report.Produced),
		logger.Int("consumed", report.Consumed),
		logger.Duration("duration", report.Duration),
	)
	return exitOK
}

// startOpsServer serves the ops routes until the returned shutdown is called.
func startOpsServer(ctx context.Context, addr string, svc *app.Service, log logger.Logger) (func(), error) {
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	swagger.Register(ctx, mux)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting ops server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "ops server failed", logger.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "ops server shutdown failed", logger.Error(err))
		}
	}, nil
}

// printStreams writes one line per consumer. A single producer's stream is
// printed as sequence numbers, otherwise items carry their producer.
func printStreams(w io.Writer, report *app.Report) {
	for _, stream := range report.Streams {
		parts := make([]string, len(stream))
		for i, it := range stream {
			if report.Producers == 1 {
				parts[i] = fmt.Sprint(it.Seq)
			} else {
				parts[i] = it.String()
			}
		}
		fmt.Fprintf(w, "[%s]\n", strings.Join(parts, ","))
	}
}
