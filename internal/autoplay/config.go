package autoplay

import "time"

// Config holds configuration for an autoplay run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Users      int           // Number of concurrent players
	Items      int           // Items each player ranks
	Dataset    string        // When set, items are stored once under this dataset key
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Seed for the hidden preferences
	ResumeEach int           // Every n-th player reloads its session halfway; 0 disables
	RepeatEach int           // Every n-th choice is submitted twice; 0 disables
	Cleanup    bool          // Abandon sessions after verification
	OutputFile string        // Output file for per-player results
	Verbose    bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	Players         int
	Finished        int
	Verified        int
	Failed          int
	Choices         int
	RepeatedChoices int
	Resumes         int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// Result is the outcome of one player.
type Result struct {
	UserID      string   `json:"user_id"`
	SessionID   string   `json:"session_id"`
	Comparisons int      `json:"comparisons"`
	MaxExpected int      `json:"estimated_max_comparisons"`
	Ranked      []string `json:"ranked_ids"`
	Resumed     bool     `json:"resumed"`
	Repeats     int      `json:"repeats"`
	Error       string   `json:"error,omitempty"`
}

type pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type sessionView struct {
	UserID                  string `json:"user_id"`
	SessionID               string `json:"session_id"`
	Status                  string `json:"status"`
	Pair                    *pair  `json:"pair"`
	ComparisonCount         int    `json:"comparison_count"`
	EstimatedMaxComparisons int    `json:"estimated_max_comparisons"`
	TotalCount              int    `json:"total_count"`
}

type ranking struct {
	Finished  bool     `json:"finished"`
	RankedIDs []string `json:"ranked_ids"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
