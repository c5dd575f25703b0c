// Simulator is a development backend for the synchronization engine.
//
// Responsibilities:
//   - Serve the job lifecycle API (create/start/stop/cancel/restart/poll)
//   - Serve the queue-item submission endpoint
//   - Advance running jobs on a timer so clients observe real progress
//
// It stands in for the production automation services during development and
// integration testing. It is not part of the engine's guarantees.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sellsync/sellsync/internal/observability"
	"github.com/sellsync/sellsync/internal/simulator"
)

// @title Sellsync Simulator API
// @version 1.0
// @description Development backend for the job lifecycle and synchronization engine.

// @BasePath /
// @schemes http
func main() {
	_ = godotenv.Load()

	logger := observability.NewLogger("simulator")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	store, err := simulator.NewStore(ctx, databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}

	driver := simulator.NewDriver(store, logger, time.Second)
	go driver.Run(ctx)

	server := simulator.NewServer(store, logger)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("simulator listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)
}
