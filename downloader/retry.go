package downloader

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/aluiziolira/go-image-harvest/fetch"
	"github.com/aluiziolira/go-image-harvest/models"
)

const renameWidth = 6

// RetryController wraps the whole acquisition for one keyword: an initial
// multi-engine attempt, then up to MaxRetries further attempts, each with a
// fixed backoff, a fresh alternate term, and a strategy-chosen downloader.
type RetryController struct {
	cfg       *config.Config
	processor *EngineProcessor
	single    *SingleSourceDownloader
	metrics   *Metrics
	sleep     func(time.Duration)

	lastStats models.RetryStats
}

// NewRetryController builds the controller and its underlying downloaders.
func NewRetryController(cfg *config.Config, metrics *Metrics) (*RetryController, error) {
	processor, err := NewEngineProcessor(cfg, metrics)
	if err != nil {
		return nil, err
	}
	single, err := NewSingleSource(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return &RetryController{
		cfg:       cfg,
		processor: processor,
		single:    single,
		metrics:   metrics,
		sleep:     time.Sleep,
	}, nil
}

// Name implements Downloader.
func (c *RetryController) Name() string { return "auto" }

// Stats returns the session record of the last Download call.
func (c *RetryController) Stats() models.RetryStats {
	return c.lastStats
}

// Download implements Downloader. The delivered count is re-scanned from
// the output directory after every attempt so externally removed duplicates
// are absorbed naturally. Returns a DownloadError only when every attempt
// yielded nothing.
func (c *RetryController) Download(ctx context.Context, keyword, outDir string, maxNum int) (bool, int, error) {
	if err := validateTask(keyword, outDir, maxNum); err != nil {
		return false, 0, err
	}

	stats := models.RetryStats{}
	baseline := fetch.CountImages(outDir)

	// Initial attempt: every engine at once.
	_, reported, err := c.processor.download(ctx, keyword, outDir, maxNum, config.ModeParallel)
	delivered := fetch.CountImages(outDir) - baseline
	c.recordAttempt(&stats, 0, keyword, "initial", maxNum, reported, delivered, err)

	for retry := 1; delivered < maxNum && retry <= c.cfg.MaxRetries; retry++ {
		if ctx.Err() != nil {
			break
		}
		c.sleep(c.cfg.RetryBackoff)
		c.metrics.IncRetries()

		term := alternateTerm(keyword, retry)
		need := maxNum - delivered
		strategy := c.pickStrategy(retry)

		slog.Info("retrying acquisition",
			slog.String("keyword", keyword),
			slog.Int("retry", retry),
			slog.String("term", term),
			slog.String("strategy", strategy),
			slog.Int("need", need),
		)

		var attemptErr error
		reported = 0
		switch strategy {
		case "engine":
			reported, attemptErr = c.processor.downloadEngine(ctx, term, outDir, need, retry/2)
		default:
			_, reported, attemptErr = c.single.Download(ctx, term, outDir, need)
		}

		delivered = fetch.CountImages(outDir) - baseline
		c.recordAttempt(&stats, retry, term, strategy, need, reported, delivered, attemptErr)
	}

	if delivered == 0 {
		c.metrics.IncError("download")
		c.lastStats = stats
		return false, 0, &DownloadError{Keyword: keyword, Retries: c.cfg.MaxRetries}
	}

	// Cosmetic final pass: a rename failure is logged and swallowed.
	renamed, renameErr := fetch.RenameSequential(outDir, renameWidth)
	if renameErr != nil {
		slog.Warn("sequential rename failed",
			slog.String("dir", outDir),
			slog.Any("error", renameErr),
		)
	}
	stats.ImagesRenamed = renamed
	c.lastStats = stats

	return true, clampCount(delivered, maxNum), nil
}

// pickStrategy maps the configured strategy and retry number to the
// downloader used for this attempt. Under the alternating default, even
// retries rotate through engine-backed passes and odd retries take the
// single-source path.
func (c *RetryController) pickStrategy(retry int) string {
	switch c.cfg.Strategy {
	case config.StrategyEngineOnly:
		return "engine"
	case config.StrategyDDGSOnly:
		return "ddgs"
	default:
		if retry%2 == 0 {
			return "engine"
		}
		return "ddgs"
	}
}

// recordAttempt updates the session record. The duplicates counter tracks
// the gap between what a downloader reported and what the directory scan
// found, which is where external deduplication shows up.
func (c *RetryController) recordAttempt(stats *models.RetryStats, retry int, term, strategy string, needed, reported, delivered int, err error) {
	record := models.AttemptRecord{
		Retry:      retry,
		Term:       term,
		Strategy:   strategy,
		Needed:     needed,
		Downloaded: reported,
		Success:    reported > 0 && err == nil,
	}
	if err != nil {
		record.Error = err.Error()
		c.metrics.IncError(errorTypeLabel(classifyError(err)))
	}
	stats.Record(record)

	// Cumulative gap between reported downloads and the directory scan;
	// externally removed duplicates show up here.
	totalReported := 0
	for _, a := range stats.History {
		totalReported += a.Downloaded
	}
	if gap := totalReported - delivered; gap > stats.DuplicatesRemoved {
		stats.DuplicatesRemoved = gap
	}
}
