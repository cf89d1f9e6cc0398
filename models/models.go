// Package models defines data structures shared by the acquisition engine.
package models

import "time"

// DownloadTask is the (keyword, output dir, target count) triple handed to a
// Downloader. Immutable per call.
type DownloadTask struct {
	Keyword string
	OutDir  string
	MaxNum  int
}

// EngineConfig holds static per-engine tuning. The base offset for a run is
// drawn from [OffsetLo, OffsetHi); each processed variation index adds
// VariationStep on top of it so consecutive variations read different result
// pages.
type EngineConfig struct {
	Name          string
	OffsetLo      int
	OffsetHi      int
	VariationStep int
}

// VariationResult records the outcome of one search-term variation against
// one engine. Created once per attempt, never mutated.
type VariationResult struct {
	Variation  string        `json:"variation"`
	Downloaded int           `json:"downloaded"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// EngineResult aggregates all variations processed for one engine in one pass.
type EngineResult struct {
	Engine          string            `json:"engine"`
	TotalDownloaded int               `json:"total_downloaded"`
	Variations      []VariationResult `json:"variations"`
	SuccessRate     float64           `json:"success_rate"`
	Duration        time.Duration     `json:"duration"`
}

// NewEngineResult builds an EngineResult from the per-variation outcomes,
// deriving the totals so they cannot drift from the variation list.
func NewEngineResult(engine string, variations []VariationResult, duration time.Duration) *EngineResult {
	total := 0
	successful := 0
	for _, v := range variations {
		total += v.Downloaded
		if v.Success {
			successful++
		}
	}
	rate := 0.0
	if len(variations) > 0 {
		rate = float64(successful) / float64(len(variations))
	}
	return &EngineResult{
		Engine:          engine,
		TotalDownloaded: total,
		Variations:      variations,
		SuccessRate:     rate,
		Duration:        duration,
	}
}

// EngineStats holds cumulative per-engine counters for one keyword
// acquisition. Reset at the start of each run; reporting only.
type EngineStats struct {
	DownloadCount  int           `json:"download_count"`
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	TotalTime      time.Duration `json:"total_time"`
	VariationsUsed int           `json:"variations_used"`
}

// AverageTime returns the mean processing time per variation.
func (s *EngineStats) AverageTime() time.Duration {
	if s.VariationsUsed == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.VariationsUsed)
}

// AttemptRecord describes one attempt in a retry session.
type AttemptRecord struct {
	Retry      int    `json:"retry"`
	Term       string `json:"term"`
	Strategy   string `json:"strategy"`
	Needed     int    `json:"needed"`
	Success    bool   `json:"success"`
	Downloaded int    `json:"downloaded"`
	Error      string `json:"error,omitempty"`
}

// RetryStats is the per-keyword session record kept by the retry controller.
type RetryStats struct {
	TotalAttempts      int             `json:"total_attempts"`
	SuccessfulAttempts int             `json:"successful_attempts"`
	FailedAttempts     int             `json:"failed_attempts"`
	DuplicatesRemoved  int             `json:"duplicates_removed"`
	ImagesRenamed      int             `json:"images_renamed"`
	History            []AttemptRecord `json:"history"`
}

// Record appends an attempt to the history and updates the counters.
func (r *RetryStats) Record(a AttemptRecord) {
	r.TotalAttempts++
	if a.Success {
		r.SuccessfulAttempts++
	} else {
		r.FailedAttempts++
	}
	r.History = append(r.History, a)
}
