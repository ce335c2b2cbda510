package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/faceoff/internal/autoplay"
)

// Default configuration constants.
const (
	defaultUsers       = 100
	defaultItems       = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
	defaultResumeEach  = 5
	defaultRepeatEach  = 7
	defaultSeed        = 1
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users      = flag.Int("users", defaultUsers, "Number of players")
		items      = flag.Int("items", defaultItems, "Items per session")
		dataset    = flag.String("dataset", "", "Store items once under this dataset key and start sessions from it")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", defaultSeed, "Seed for the hidden preferences")
		resumeEach = flag.Int("resume-each", defaultResumeEach, "Every n-th player reloads its session halfway")
		repeatEach = flag.Int("repeat-each", defaultRepeatEach, "Every n-th choice is submitted twice")
		cleanup    = flag.Bool("cleanup", false, "Abandon sessions after verification")
		outputFile = flag.String("output", "", "Output file for per-player results")
		logFile    = flag.String("log", "", "Log file for run output")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		autoplay.ShowHelp()
		return
	}
	if *users < 1 || *items < 1 {
		_, _ = os.Stderr.WriteString("users and items must be positive\n")
		os.Exit(2)
	}

	closeLog, err := autoplay.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &autoplay.Config{
		BaseURL:    *baseURL,
		Users:      *users,
		Items:      *items,
		Dataset:    *dataset,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		ResumeEach: *resumeEach,
		RepeatEach: *repeatEach,
		Cleanup:    *cleanup,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if err := autoplay.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Autoplay failed: " + err.Error() + "\n")
		cancel()
		closeLog()
		os.Exit(1)
	}
}
