// Command streamwire decodes and accumulates recorded or live model
// streams.
//
// Input is read from a file, stdin, an HTTP endpoint (--url) or a
// realtime WebSocket (--ws):
//
//	streamwire decode --kind chat capture.sse
//	streamwire collect --url http://localhost:9090/v1/responses
//	streamwire collect --kind realtime --ws ws://localhost:9090/v1/realtime
//	streamwire list
//	streamwire replay <id>
//
// Settings come from the streamwire config file and STREAMWIRE_*
// variables (see pkg/config).
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/rhuss/streamwire/pkg/config"
	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/observability"
	"github.com/rhuss/streamwire/pkg/recorder"
	"github.com/rhuss/streamwire/pkg/recorder/memory"
	"github.com/rhuss/streamwire/pkg/recorder/postgres"
)

type cli struct {
	Config string `help:"Config file path." type:"path" short:"c"`
	Debug  string `help:"Comma-separated debug categories, overriding logging.debug."`

	Decode  decodeCmd  `cmd:"" help:"Print every decoded stream value as a JSON line."`
	Collect collectCmd `cmd:"" help:"Accumulate a stream and print the result."`
	List    listCmd    `cmd:"" help:"List recorded sessions."`
	Replay  replayCmd  `cmd:"" help:"Collect a recorded session again."`
}

// app is the state shared by all commands.
type app struct {
	ctx   context.Context
	cfg   *config.Config
	store recorder.Store
	out   io.Writer
}

func main() {
	if err := run(); err != nil {
		slog.Error("streamwire failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("streamwire"),
		kong.Description("Decode and accumulate model streams."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Debug != "" {
		cfg.Logging.Debug = c.Debug
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		shutdown := serveMetrics(cfg.Metrics)
		defer shutdown()
	}

	store, err := openRecorder(ctx, cfg.Recorder)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	return kctx.Run(&app{ctx: ctx, cfg: cfg, store: store, out: os.Stdout})
}

// openRecorder returns the configured store, or nil for type "none".
func openRecorder(ctx context.Context, cfg config.RecorderConfig) (recorder.Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		slog.Info("using in-memory recorder", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres recorder: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown recorder type %q", cfg.Type)
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown
// function.
func serveMetrics(cfg config.MetricsConfig) func() {
	mux := http.NewServeMux()
	mux.Handle("GET "+cfg.Path, observability.Handler())
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		slog.Info("metrics endpoint starting", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics endpoint failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
