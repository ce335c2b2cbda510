// Package autoplay drives a running faceoff server end to end: many players
// rank item lists concurrently, each answering pairs from a hidden
// consistent preference, and every final ranking is checked against it.
package autoplay

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/faceoff/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete autoplay run and fails when any player failed.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("autoplay")

	log.Info(ctx, "starting autoplay",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("items", config.Items),
		logger.Int("workers", config.Workers),
		logger.String("dataset", config.Dataset),
		logger.Duration("timeout", config.Timeout))

	client := NewHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Store the shared dataset when one is used
	items := ItemIDs(config.Items)
	if config.Dataset != "" {
		if err := client.PutDataset(ctx, config.Dataset, items); err != nil {
			return fmt.Errorf("store dataset: %w", err)
		}
	}

	// Step 3: Play all sessions concurrently
	results := playAll(ctx, config, client, items, stats)

	// Step 4: Save results to file
	if config.OutputFile != "" {
		if err := saveResults(config.OutputFile, results); err != nil {
			log.Warn(ctx, "failed to save results", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.Failed > 0 {
		for _, r := range results {
			if r.Error != "" {
				log.Error(ctx, "player failed", logger.String("user_id", r.UserID), logger.String("error", r.Error))
				if !config.Verbose {
					break
				}
			}
		}
		return fmt.Errorf("%d of %d players failed", stats.Failed, stats.Players)
	}
	log.Info(ctx, "autoplay completed successfully")
	return nil
}

// ItemIDs returns n synthetic item ids.
func ItemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("item-%04d", i)
	}
	return ids
}

// playAll runs one player per user on a fixed worker pool.
func playAll(ctx context.Context, config *Config, client *HTTPClient, items []string, stats *Stats) []Result {
	log := logger.Named("autoplay")
	results := make([]Result, config.Users)
	workers := max(config.Workers, 1)

	jobs := make(chan int, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p := newPlayer(config, client, items, i)
				res := p.play(ctx)
				results[i] = res

				if res.Error == "" && config.Cleanup {
					if err := client.Abandon(ctx, res.UserID); err != nil {
						log.Warn(ctx, "failed to abandon session", logger.String("user_id", res.UserID), logger.Error(err))
					}
				}
				if config.Verbose {
					log.Info(ctx, "player done",
						logger.String("user_id", res.UserID),
						logger.Int("comparisons", res.Comparisons),
						logger.Bool("ok", res.Error == ""))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range config.Users {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	// Slots never handed to a worker stay zero; they count as failed.
	stats.Players = config.Users
	for i, r := range results {
		if r.UserID == "" {
			results[i].Error = "not played"
		}
		if r.Ranked != nil {
			stats.Finished++
		}
		if r.UserID != "" && r.Error == "" {
			stats.Verified++
			if r.Resumed {
				stats.Resumes++
			}
		}
		stats.Choices += r.Comparisons
		stats.RepeatedChoices += r.Repeats
	}
	stats.Failed = stats.Players - stats.Verified
	return results
}

func newPlayer(config *Config, client *HTTPClient, items []string, i int) *player {
	rng := rand.New(rand.NewPCG(config.Seed, uint64(i)))
	p := &player{
		client: client,
		userID: "autoplay-" + uuid.NewString(),
		pref:   NewPreference(items, rng),
		repeat: config.RepeatEach,
	}
	if config.Dataset != "" {
		p.dataset = config.Dataset
	} else {
		p.items = items
	}
	if config.ResumeEach > 0 && i%config.ResumeEach == 0 {
		p.resume = true
	}
	return p
}

// saveResults writes the per-player results as a JSON array.
func saveResults(filename string, results []Result) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, choicesPerSecond float64
	if stats.Players > 0 {
		successRate = float64(stats.Verified) / float64(stats.Players) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		choicesPerSecond = float64(stats.Choices) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("players", stats.Players),
		logger.Int("finished", stats.Finished),
		logger.Int("verified", stats.Verified),
		logger.Int("failed", stats.Failed),
		logger.Int("choices", stats.Choices),
		logger.Int("repeatedChoices", stats.RepeatedChoices),
		logger.Int("resumes", stats.Resumes),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("choicesPerSecond", choicesPerSecond))
}
