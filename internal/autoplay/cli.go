package autoplay

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/faceoff/pkg/logger"
)

// SetupLogging initializes the logger to write to stdout and, when logFile is
// set, to that file as well. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	var w io.Writer = os.Stdout
	closer := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return closer, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = func() { _ = file.Close() }
	}

	if err := logger.Init(logger.WithWriter(w)); err != nil {
		closer()
		return func() {}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closer, nil
}

// ShowHelp prints usage information for the autoplay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`faceoff autoplay
================

Plays many ranking sessions concurrently against a running faceoff server.
Every player answers pairs from a hidden consistent preference, and the final
ranking must equal that preference.

Usage:
  go run ./cmd/autoplay [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of players (default 100)
  -items int
        Items per session (default 20)
  -dataset string
        Store items once under this dataset key and start sessions from it
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed uint
        Seed for the hidden preferences (default 1)
  -resume-each int
        Every n-th player reloads its session halfway (default 5, 0 disables)
  -repeat-each int
        Every n-th choice is submitted twice with the same choice id (default 7, 0 disables)
  -cleanup
        Abandon sessions after verification
  -output string
        Output file for per-player results
  -log string
        Log file for run output
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Play with default settings
  go run ./cmd/autoplay

  # Larger run from a shared dataset
  go run ./cmd/autoplay -users 1000 -items 50 -dataset bench -workers 32
`)
}
