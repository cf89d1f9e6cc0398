package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/aluiziolira/go-image-harvest/engines"
	"github.com/aluiziolira/go-image-harvest/fetch"
	"github.com/aluiziolira/go-image-harvest/models"
)

// defaultEngineConfigs tunes the supported engines' offset behaviour. The
// random base offset keeps reruns off the first result page; the variation
// step spreads sibling variations across the result space.
var defaultEngineConfigs = map[string]models.EngineConfig{
	"google": {Name: "google", OffsetLo: 0, OffsetHi: 20, VariationStep: 20},
	"bing":   {Name: "bing", OffsetLo: 0, OffsetHi: 30, VariationStep: 25},
	"baidu":  {Name: "baidu", OffsetLo: 0, OffsetHi: 30, VariationStep: 30},
}

// engineSlot pairs a client with its tuning.
type engineSlot struct {
	client engines.Client
	engCfg models.EngineConfig
}

// EngineProcessor orchestrates the configured engines in parallel or
// sequential mode and falls back to the single-source downloader for any
// shortfall.
type EngineProcessor struct {
	cfg      *config.Config
	slots    []engineSlot
	fallback *SingleSourceDownloader
	metrics  *Metrics

	statsMu sync.Mutex
	stats   map[string]*models.EngineStats
}

// NewEngineProcessor builds a processor for cfg.Engines.
func NewEngineProcessor(cfg *config.Config, metrics *Metrics) (*EngineProcessor, error) {
	saver := fetch.NewSaver(fetch.SaverOptions{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		MinBytes:  cfg.MinImageBytes,
		MaxBytes:  cfg.MaxImageBytes,
	})
	engineCfg := engines.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.FetchTimeout,
		RateLimit: cfg.RateLimit,
		RateWin:   cfg.RateWindow,
		Saver:     saver,
	}

	slots := make([]engineSlot, 0, len(cfg.Engines))
	for _, name := range cfg.Engines {
		tuning, ok := defaultEngineConfigs[name]
		if !ok {
			return nil, ErrConfiguration{Err: fmt.Errorf("no engine config for %q", name)}
		}
		client, err := engines.New(name, engineCfg)
		if err != nil {
			return nil, ErrConfiguration{Err: err}
		}
		slots = append(slots, engineSlot{client: client, engCfg: tuning})
	}
	if len(slots) == 0 {
		return nil, ErrConfiguration{Err: fmt.Errorf("no engines configured")}
	}

	fallback, err := NewSingleSource(cfg, metrics)
	if err != nil {
		return nil, err
	}

	return &EngineProcessor{
		cfg:      cfg,
		slots:    slots,
		fallback: fallback,
		metrics:  metrics,
		stats:    make(map[string]*models.EngineStats),
	}, nil
}

// Name implements Downloader.
func (p *EngineProcessor) Name() string { return "engine" }

// Download implements Downloader using the configured mode.
func (p *EngineProcessor) Download(ctx context.Context, keyword, outDir string, maxNum int) (bool, int, error) {
	return p.download(ctx, keyword, outDir, maxNum, p.cfg.Mode)
}

func (p *EngineProcessor) download(ctx context.Context, keyword, outDir string, maxNum int, mode string) (bool, int, error) {
	if err := validateTask(keyword, outDir, maxNum); err != nil {
		return false, 0, err
	}

	p.resetStats()
	state := newSharedState(maxNum, fetch.CountImages(outDir))

	switch mode {
	case config.ModeSequential:
		p.runSequential(ctx, keyword, outDir, state)
	default:
		p.runParallel(ctx, keyword, outDir, maxNum, state)
	}

	// Any shortfall goes to the single-source fallback; when every engine
	// failed outright this re-requests the full amount.
	if remainder := maxNum - state.Count(); remainder > 0 {
		slog.Info("invoking single-source fallback",
			slog.String("keyword", keyword),
			slog.Int("remainder", remainder),
		)
		_, n, err := p.fallback.Download(ctx, keyword, outDir, remainder)
		if err != nil {
			return false, 0, err
		}
		state.Add(n)
	}

	p.logSummary(keyword, state.Count())
	downloaded := clampCount(state.Count(), maxNum)
	return downloaded > 0, downloaded, nil
}

// runParallel gives every engine a worker slot simultaneously. Each slot
// targets the per-engine share plus a 30% buffer to offset shortfall from
// weaker engines.
func (p *EngineProcessor) runParallel(ctx context.Context, keyword, outDir string, maxNum int, state *sharedState) {
	perEngine := (maxNum*13 + len(p.slots)*10 - 1) / (len(p.slots) * 10)
	if perEngine < 5 {
		perEngine = 5
	}

	var wg sync.WaitGroup
	for _, slot := range p.slots {
		wg.Add(1)
		go func(slot engineSlot) {
			defer wg.Done()
			ectx, cancel := context.WithTimeout(ctx, p.cfg.EngineTimeout)
			defer cancel()

			proc := &singleEngineProcessor{client: slot.client, engCfg: slot.engCfg, cfg: p.cfg, metrics: p.metrics}
			result := proc.Process(ectx, keyword, outDir, perEngine, state)
			p.recordResult(result)
		}(slot)
	}

	// Liveness check: a slot that exceeds its ceiling is treated as failed
	// without blocking the caller further.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.EngineTimeout + 10*time.Second):
		state.Stop()
		slog.Error("engine slots exceeded completion ceiling, abandoning wait",
			slog.String("keyword", keyword),
		)
	}
}

// runSequential processes engines one at a time in configured order; each
// engine receives the current remaining quota.
func (p *EngineProcessor) runSequential(ctx context.Context, keyword, outDir string, state *sharedState) {
	for _, slot := range p.slots {
		remaining := state.Remaining()
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		ectx, cancel := context.WithTimeout(ctx, p.cfg.EngineTimeout)
		proc := &singleEngineProcessor{client: slot.client, engCfg: slot.engCfg, cfg: p.cfg, metrics: p.metrics}
		result := proc.Process(ectx, keyword, outDir, remaining, state)
		cancel()
		p.recordResult(result)
	}
}

// downloadEngine runs a single named engine for one retry pass, without the
// fallback. Used by the retry controller's rotating engine-backed attempts.
func (p *EngineProcessor) downloadEngine(ctx context.Context, keyword, outDir string, maxNum, slotIndex int) (int, error) {
	if err := validateTask(keyword, outDir, maxNum); err != nil {
		return 0, err
	}
	slot := p.slots[slotIndex%len(p.slots)]
	state := newSharedState(maxNum, fetch.CountImages(outDir))

	ectx, cancel := context.WithTimeout(ctx, p.cfg.EngineTimeout)
	defer cancel()
	proc := &singleEngineProcessor{client: slot.client, engCfg: slot.engCfg, cfg: p.cfg, metrics: p.metrics}
	result := proc.Process(ectx, keyword, outDir, maxNum, state)
	p.recordResult(result)
	return clampCount(state.Count(), maxNum), nil
}

func (p *EngineProcessor) resetStats() {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats = make(map[string]*models.EngineStats, len(p.slots))
	for _, slot := range p.slots {
		p.stats[slot.engCfg.Name] = &models.EngineStats{}
	}
}

func (p *EngineProcessor) recordResult(result *models.EngineResult) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	stats, ok := p.stats[result.Engine]
	if !ok {
		stats = &models.EngineStats{}
		p.stats[result.Engine] = stats
	}
	stats.DownloadCount += result.TotalDownloaded
	stats.VariationsUsed += len(result.Variations)
	for _, v := range result.Variations {
		if v.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		stats.TotalTime += v.Duration
	}
}

// Stats returns a snapshot of the per-engine counters for the last run.
func (p *EngineProcessor) Stats() map[string]models.EngineStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	out := make(map[string]models.EngineStats, len(p.stats))
	for name, stats := range p.stats {
		out[name] = *stats
	}
	return out
}

func (p *EngineProcessor) logSummary(keyword string, total int) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	for name, stats := range p.stats {
		share := 0.0
		if total > 0 {
			share = float64(stats.DownloadCount) / float64(total) * 100
		}
		rate := 0.0
		if attempts := stats.SuccessCount + stats.FailureCount; attempts > 0 {
			rate = float64(stats.SuccessCount) / float64(attempts)
		}
		slog.Info("engine summary",
			slog.String("keyword", keyword),
			slog.String("engine", name),
			slog.Int("downloaded", stats.DownloadCount),
			slog.String("share", fmt.Sprintf("%.1f%%", share)),
			slog.String("success_rate", fmt.Sprintf("%.2f", rate)),
			slog.Duration("avg_time", stats.AverageTime()),
			slog.Duration("total_time", stats.TotalTime),
		)
	}
}
