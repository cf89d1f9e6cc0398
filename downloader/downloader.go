// Package downloader implements the multi-engine image acquisition engine:
// the Downloader contract and registry, the single-source baseline, the
// multi-engine orchestrator with per-variation scheduling, and the
// keyword-level retry controller.
package downloader

import (
	"context"
	"fmt"
	"os"
)

const dirPerm os.FileMode = 0o755

// Downloader is the sole public acquisition contract. Download acquires up
// to maxNum images for keyword into outDir and reports (success, count).
// The error is non-nil only for call-terminating conditions (configuration
// faults, or total exhaustion in retry-wrapped implementations); network
// and partial failures surface through the success/count pair.
type Downloader interface {
	Name() string
	Download(ctx context.Context, keyword, outDir string, maxNum int) (bool, int, error)
}

// validateTask checks the task triple and ensures outDir exists. Runs
// before any network work.
func validateTask(keyword, outDir string, maxNum int) error {
	if keyword == "" {
		return ErrConfiguration{Err: fmt.Errorf("keyword cannot be empty")}
	}
	if outDir == "" {
		return ErrConfiguration{Err: fmt.Errorf("output dir cannot be empty")}
	}
	if maxNum <= 0 {
		return ErrConfiguration{Err: fmt.Errorf("max num must be positive, got %d", maxNum)}
	}
	if err := os.MkdirAll(outDir, dirPerm); err != nil {
		return ErrConfiguration{Err: fmt.Errorf("create output dir: %w", err)}
	}
	return nil
}

// clampCount enforces the contract that a Downloader never returns a count
// above maxNum, even when in-flight workers overshot before the stop check.
func clampCount(count, maxNum int) int {
	if count > maxNum {
		return maxNum
	}
	return count
}
