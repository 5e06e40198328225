package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/bridge"
	"github.com/inkwell-ai/inkwell/internal/hub"
	"github.com/inkwell-ai/inkwell/internal/run/inmem"
	"github.com/inkwell-ai/inkwell/internal/runner"
	"github.com/inkwell-ai/inkwell/internal/server"
	"github.com/inkwell-ai/inkwell/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket server",
	Long: `Run the inkwell server.

Exposes synchronous turns, background runs, and per-run WebSocket
event streams:

  POST /v1/sessions/{id}/messages   Run one turn, wait for the reply
  POST /v1/runs                     Start a background run
  GET  /v1/runs/{id}                Fetch the run record
  GET  /v1/runs/{id}/events         Stream run events over WebSocket`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	registry, err := buildRegistry()
	if err != nil {
		return err
	}
	orchestrator := buildOrchestrator(registry)

	eventHub := hub.New(logger)
	store := inmem.New()
	sessions := session.NewStore()
	locks := session.NewLocks()

	runSvc := runner.New(orchestrator, eventHub, store, locks, cfg.Server.TurnTimeout, logger)
	streamBridge := bridge.New(eventHub, store, runSvc, logger)

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		TurnTimeout: cfg.Server.TurnTimeout,
	}, orchestrator, runSvc, streamBridge, store, sessions, locks, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
		return nil
	}
}
