// Command mock-stream serves deterministic scripted streams for the
// responses, chat completions, realtime and assistants protocols. It is
// used by integration tests and for trying the streamwire CLI without a
// live backend.
//
// Configuration is read from the streamwire config file and STREAMWIRE_*
// variables (see pkg/config). Additionally:
//
//	MOCK_PORT - Listen port, overriding mock.port (default: 9090)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/streamwire/pkg/config"
	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/mockstream"
	"github.com/rhuss/streamwire/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mock stream server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	port := strconv.Itoa(cfg.Mock.Port)
	if v := os.Getenv("MOCK_PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid MOCK_PORT: %w", err)
		}
		port = v
	}

	mock := mockstream.New(mockstream.WithChunkDelay(cfg.Mock.ChunkDelay))

	mux := http.NewServeMux()
	mux.Handle("/", mock)
	mux.Handle("GET "+cfg.Metrics.Path, observability.Handler())

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock stream server starting", "port", port, "chunk_delay", cfg.Mock.ChunkDelay)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("mock stream server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
