package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
)

// shutdown stops accepting requests and waits for in-flight ones.
func shutdown(server *http.Server, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := tracing.Shutdown(ctx); err != nil {
		log.Warn("failed to flush traces", zap.Error(err))
	}
	return nil
}

// runCleanups releases resources in reverse order of acquisition.
func runCleanups(cleanups []func() error, log *logger.Logger) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			log.Warn("cleanup failed", zap.Error(err))
		}
	}
}
