// Package main is the taskboard server. It serves the board API over HTTP
// and WebSocket from a single process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/taskboard/internal/board/handlers"
	"github.com/kandev/taskboard/internal/board/service"
	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
)

const serverName = "taskboard"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("taskboard exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting taskboard...",
		zap.String("driver", cfg.Database.Driver),
		zap.String("addr", cfg.Server.Addr()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanups []func() error
	defer func() { runCleanups(cleanups, log) }()

	if err := tracing.Init(ctx, cfg.Tracing); err != nil {
		// spans are best effort; the server runs without them
		log.Warn("tracing disabled", zap.Error(err))
	} else if cfg.Tracing.Endpoint != "" {
		log.Info("exporting traces",
			zap.String("endpoint", cfg.Tracing.Endpoint),
			zap.String("service", cfg.Tracing.ServiceName),
			zap.Float64("sample_ratio", cfg.Tracing.SampleRatio))
	}

	repo, repoCleanup, err := provideRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, repoCleanup)

	eventBus, busCleanup, err := provideEventBus(cfg, log)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, busCleanup)

	svc := service.NewService(repo, eventBus.Bus, log, serviceOptions(cfg))

	gw, broadcaster := provideGateway(ctx, eventBus.Bus, cfg.Events.Namespace, log)
	cleanups = append(cleanups, func() error {
		broadcaster.Close()
		return nil
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := newRouter(cfg, log, registry, eventBus.Bus)
	gw.SetupRoutes(router)
	handlers.RegisterRoutes(router, gw.Dispatcher, svc, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down taskboard...")
		return shutdown(server, log)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("taskboard stopped")
	return nil
}

func serviceOptions(cfg *config.Config) service.Options {
	opts := service.Options{
		DefaultName: cfg.Board.DefaultName,
		Namespace:   cfg.Events.Namespace,
	}
	for _, u := range cfg.Board.SeedUsers {
		opts.SeedUsers = append(opts.SeedUsers, v1User(u))
	}
	return opts
}
