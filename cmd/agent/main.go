// Agent wires the synchronization engine against a backend and keeps a set of
// resources under watch.
//
// Responsibilities:
//   - Poll job state for the configured resources (or all of them)
//   - Ensure each configured resource has a job, creating one when absent
//   - Log aggregate statistics periodically
//   - Remember the last-used settings in the local preference store
//
// It exists to exercise the engine end to end against the simulator; the
// production dashboard embeds the same packages.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sellsync/sellsync/internal/client"
	"github.com/sellsync/sellsync/internal/control"
	"github.com/sellsync/sellsync/internal/job"
	"github.com/sellsync/sellsync/internal/observability"
	"github.com/sellsync/sellsync/internal/prefs"
	"github.com/sellsync/sellsync/internal/registry"
	"github.com/sellsync/sellsync/internal/syncer"
)

func main() {
	_ = godotenv.Load()

	logger := observability.NewLogger("agent")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		log.Fatal("BACKEND_URL is required")
	}

	prefsPath := os.Getenv("PREFS_PATH")
	if prefsPath == "" {
		prefsPath = ".sellsync-prefs"
	}

	preferences, err := prefs.NewBadgerStore(prefsPath, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer preferences.Close()

	fastInterval := 3 * time.Second
	if saved, ok, _ := preferences.Get(prefs.KeyPollInterval); ok {
		if parsed, err := time.ParseDuration(saved); err == nil {
			fastInterval = parsed
		}
	}

	api := client.New(backendURL, logger)
	reg := registry.New()

	synchronizer := syncer.New(api, reg, logger, syncer.Config{FastInterval: fastInterval})
	defer synchronizer.StopAll()

	synchronizer.Subscribe(func(record *job.Record) {
		if record.State == job.StateFailed {
			logger.Warn("job failed", "job_id", record.ID,
				"resource_key", record.ResourceKey, "error", record.ErrorMessage)
		}
	})

	controller := control.New(api, reg, synchronizer, logger)

	resources := splitList(os.Getenv("RESOURCE_KEYS"))
	if len(resources) == 0 {
		if saved, ok, _ := preferences.Get(prefs.KeyLastResource); ok {
			resources = []string{saved}
		}
	}

	if len(resources) == 0 {
		logger.Info("no resources configured, watching all")
		synchronizer.Start(syncer.ScopeAll)
	} else {
		for _, resourceKey := range resources {
			ensureJob(ctx, controller, logger, resourceKey)
			synchronizer.Start(resourceKey)
		}
		_ = preferences.Set(prefs.KeyLastResource, resources[len(resources)-1])
	}

	statsTicker := time.NewTicker(15 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			stats := reg.AggregateStatistics()
			logger.Info("aggregate statistics",
				"running", reg.RunningCount(),
				"collected", stats.Collected,
				"processed", stats.Processed,
				"succeeded", stats.Succeeded,
				"failed", stats.Failed,
				"skipped", stats.Skipped)
		}
	}
}

func ensureJob(ctx context.Context, controller *control.Controller, logger *slog.Logger, resourceKey string) {
	record, err := controller.Create(ctx, client.CreateJobParams{
		ResourceKey: resourceKey,
		Kind:        job.KindRecurringCycle,
	})
	if err != nil {
		if control.IsConflict(err) {
			logger.Info("resource already has an active job", "resource_key", resourceKey)
			return
		}

		logger.Warn("failed to create job", "resource_key", resourceKey, "err", err)
		return
	}

	if _, err := controller.Toggle(ctx, record.ID); err != nil {
		logger.Warn("failed to start job", "job_id", record.ID, "err", err)
		return
	}

	logger.Info("job started", "resource_key", resourceKey, "job_id", record.ID)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
