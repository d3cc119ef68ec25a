package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alienxp03/handshake/internal/simulation"
	"github.com/alienxp03/handshake/web/handlers"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("Initializing storage", "path", appConfig.Storage.Path)
		store, err := getStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		if n, err := store.MarkInterrupted(ctx); err != nil {
			slog.Warn("Failed to mark interrupted simulations", "error", err)
		} else if n > 0 {
			slog.Info("Marked interrupted simulations as failed", "count", n)
		}

		engine, registry, personas, err := newEngine(ctx, store)
		if err != nil {
			return err
		}

		runner := simulation.NewRunner(engine,
			simulation.WithWorkers(appConfig.Simulation.Workers),
			simulation.WithQueueSize(appConfig.Simulation.QueueSize),
		)
		runner.Start(context.WithoutCancel(ctx))

		h := handlers.New(store, engine, runner, personas, registry, handlers.Options{
			PollInterval: appConfig.Server.PollInterval,
		})

		port := appConfig.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		addr := fmt.Sprintf(":%d", port)
		server := &http.Server{
			Addr:        addr,
			Handler:     h.Router(),
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("Starting handshake server",
				"url", fmt.Sprintf("http://localhost%s", addr),
				"provider", appConfig.LLM.Provider,
				"workers", appConfig.Simulation.Workers)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
		}

		slog.Info("Shutting down...")
		httpCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(httpCtx); err != nil {
			slog.Warn("HTTP shutdown incomplete", "error", err)
		}

		runCtx, cancelRuns := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelRuns()
		if err := runner.Shutdown(runCtx); err != nil {
			slog.Warn("Cancelled running simulations", "active", runner.Active(), "error", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8182, "Server port (overrides config)")
}
