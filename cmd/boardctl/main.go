// Package main is boardctl, a command line client for a taskboard server.
//
// Usage:
//
//	boardctl [-server URL] [-o json|yaml] <command> [flags]
//
// Mutating commands go through the client board store, so they print the
// canonical board the server returns.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/kandev/taskboard/internal/common/errors"
	"github.com/kandev/taskboard/internal/common/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			fmt.Fprintf(os.Stderr, "error [%s]: %s\n", appErr.Code, appErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("boardctl", flag.ContinueOnError)
	serverFlag := fs.String("server", "http://localhost:8080", "taskboard server URL")
	outputFlag := fs.String("o", "json", "output format (json, yaml)")
	logLevelFlag := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: boardctl [flags] <command> [command flags]\n\ncommands:\n")
		for _, c := range commands {
			fmt.Fprintf(fs.Output(), "  %-12s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(fs.Output(), "\nflags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	p, err := newPrinter(*outputFlag, stdout)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      getEnvOrFlag("BOARDCTL_LOG_LEVEL", *logLevelFlag),
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a := newApp(getEnvOrFlag("TASKBOARD_URL", *serverFlag), p, log)

	name := fs.Arg(0)
	for _, c := range commands {
		if c.name == name {
			return c.run(a, ctx, fs.Args()[1:])
		}
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", name)
}

// getEnvOrFlag returns the environment variable value if set, otherwise the flag value.
func getEnvOrFlag(envKey, flagValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return flagValue
}
