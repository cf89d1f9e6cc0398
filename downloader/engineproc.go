package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/aluiziolira/go-image-harvest/engines"
	"github.com/aluiziolira/go-image-harvest/models"
)

// singleEngineProcessor runs one engine's share of an acquisition: it picks
// a shuffled subset of search-term variations, spreads provider offsets so
// variations read different result pages, and feeds results into the shared
// state.
type singleEngineProcessor struct {
	client  engines.Client
	engCfg  models.EngineConfig
	cfg     *config.Config
	metrics *Metrics
}

// Process runs the variation schedule for one engine against the shared
// state, targeting up to target images. Always returns a result; engine
// failures surface as failed variations, never as an error.
func (p *singleEngineProcessor) Process(ctx context.Context, keyword, outDir string, target int, state *sharedState) *models.EngineResult {
	start := time.Now()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	variations := selectVariations(rng, keyword, target)
	baseOffset := p.engCfg.OffsetLo
	if span := p.engCfg.OffsetHi - p.engCfg.OffsetLo; span > 0 {
		baseOffset += rng.Intn(span)
	}

	perShare := (target + len(variations) - 1) / len(variations)
	if perShare < 1 {
		perShare = 1
	}

	var mu sync.Mutex
	var results []models.VariationResult

	process := func(i int, variation string) {
		if state.ShouldStop() || ctx.Err() != nil {
			return
		}
		actualLimit := perShare
		if remaining := state.Remaining(); actualLimit > remaining {
			actualLimit = remaining
		}
		if actualLimit <= 0 {
			return
		}

		offset := baseOffset + i*p.engCfg.VariationStep
		result := p.runVariation(ctx, variation, outDir, actualLimit, offset, state)

		state.Add(result.Downloaded)
		p.metrics.AddImages(p.engCfg.Name, result.Downloaded)
		p.metrics.IncVariation(p.engCfg.Name, result.Success)
		p.metrics.ObserveVariation(result.Duration)

		mu.Lock()
		results = append(results, result)
		mu.Unlock()
	}

	workers := p.cfg.VariationWorkers
	if workers > len(variations) {
		workers = len(variations)
	}
	if workers <= 1 {
		for i, variation := range variations {
			process(i, variation)
		}
	} else {
		type job struct {
			index     int
			variation string
		}
		jobs := make(chan job, len(variations))
		for i, variation := range variations {
			jobs <- job{index: i, variation: variation}
		}
		close(jobs)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobs {
					process(j.index, j.variation)
				}
			}()
		}
		wg.Wait()
	}

	return models.NewEngineResult(p.engCfg.Name, results, time.Since(start))
}

// runVariation invokes the engine client for one variation under the
// per-variation timeout. Recoverable client faults (including panics from
// parsing) are caught and recorded as failed results so sibling variations
// keep running.
func (p *singleEngineProcessor) runVariation(ctx context.Context, variation, outDir string, limit, offset int, state *sharedState) (result models.VariationResult) {
	start := time.Now()
	result = models.VariationResult{Variation: variation}

	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("client fault: %v", r)
			p.metrics.IncError("engine")
			slog.Error("engine client fault recovered",
				slog.String("engine", p.engCfg.Name),
				slog.String("variation", variation),
				slog.Any("fault", r),
			)
		}
	}()

	vctx, cancel := context.WithTimeout(ctx, p.cfg.VariationTimeout)
	defer cancel()

	fileIndex := state.NextIndexBlock(limit)
	count, err := p.client.Fetch(vctx, engines.Options{
		Query:     variation,
		Limit:     limit,
		Offset:    offset,
		FileIndex: fileIndex,
		OutDir:    outDir,
	})
	result.Downloaded = count

	if err != nil {
		classified := classifyError(err)
		result.Success = false
		result.Error = classified.Error()
		p.metrics.IncError(errorTypeLabel(ErrEngine{Engine: p.engCfg.Name, Err: classified}))
		slog.Warn("variation failed",
			slog.String("engine", p.engCfg.Name),
			slog.String("variation", variation),
			slog.Int("offset", offset),
			slog.Any("error", err),
		)
		return result
	}

	result.Success = true
	slog.Debug("variation processed",
		slog.String("engine", p.engCfg.Name),
		slog.String("variation", variation),
		slog.Int("offset", offset),
		slog.Int("downloaded", count),
		slog.Duration("duration", time.Since(start)),
	)
	return result
}
