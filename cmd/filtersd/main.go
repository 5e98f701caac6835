// Command filtersd serves the filter admin surface: it loads a filter
// pipeline configuration file, registers the built-in steps, and exposes the
// configured pipelines over HTTP for inspection and dry-runs.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openedx/openedx-filters/internal/server"
	"github.com/openedx/openedx-filters/pkg/filter"
	"github.com/openedx/openedx-filters/pkg/filter/config"
	"github.com/openedx/openedx-filters/pkg/filter/registry"
	"github.com/openedx/openedx-filters/pkg/filter/runlog"
	"github.com/openedx/openedx-filters/pkg/filter/steps"
	"github.com/openedx/openedx-filters/pkg/filter/telemetry"
)

func main() {
	configPath := flag.String("config", "filters.yaml", "path to the filter configuration file")
	port := flag.Int("port", 8090, "admin server port")
	runlogPath := flag.String("runlog", "", "path to the run log database (empty disables run recording)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("openedx-filters", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	steps.RegisterBuiltins(registry.Default)

	source, err := config.NewFileSource(*configPath, logger)
	if err != nil {
		log.Fatalf("Failed to load filter config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := source.Watch(ctx); err != nil {
		log.Fatalf("Failed to watch filter config: %v", err)
	}

	opts := []filter.Option{filter.WithLogger(logger)}
	var runs server.RunLister
	if *runlogPath != "" {
		store, err := runlog.Open(*runlogPath)
		if err != nil {
			log.Fatalf("Failed to open run log: %v", err)
		}
		defer store.Close()
		opts = append(opts, filter.WithRecorder(store))
		runs = store
	}

	runner := filter.NewRunner(source, registry.Default, opts...)

	srv := server.New(*port, runner, source, runs, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("admin server stopped", slog.String("error", err.Error()))
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutting down")
	case <-ctx.Done():
	}
}
