package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/aluiziolira/go-image-harvest/fetch"
	lru "github.com/hashicorp/golang-lru/v2"
)

// imageSaver is the slice of the fetch primitive the downloader needs.
// *fetch.Saver satisfies it; tests substitute stubs.
type imageSaver interface {
	SaveValid(ctx context.Context, url, dir, baseName string) (string, error)
}

// overFetchFactor is how many candidate URLs are requested per image
// wanted, compensating for expected fetch failures.
const overFetchFactor = 3

const seenCacheSize = 4096

// SingleSourceDownloader fetches from one inexpensive keyless engine with a
// bounded worker pool. It is used standalone and as the terminal fallback
// for every other acquisition path.
type SingleSourceDownloader struct {
	cfg      *config.Config
	searcher Searcher
	saver    imageSaver
	seen     *lru.Cache[string, struct{}]
	metrics  *Metrics
	sleep    func(time.Duration)
}

// NewSingleSource builds the downloader with the default DuckDuckGo
// searcher and fetch primitive.
func NewSingleSource(cfg *config.Config, metrics *Metrics) (*SingleSourceDownloader, error) {
	saver := fetch.NewSaver(fetch.SaverOptions{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		MinBytes:  cfg.MinImageBytes,
		MaxBytes:  cfg.MaxImageBytes,
	})
	return newSingleSource(cfg, newDDGSearcher(cfg.UserAgent, cfg.FetchTimeout), saver, metrics)
}

func newSingleSource(cfg *config.Config, searcher Searcher, saver imageSaver, metrics *Metrics) (*SingleSourceDownloader, error) {
	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, ErrConfiguration{Err: fmt.Errorf("seen cache: %w", err)}
	}
	return &SingleSourceDownloader{
		cfg:      cfg,
		searcher: searcher,
		saver:    saver,
		seen:     seen,
		metrics:  metrics,
		sleep:    time.Sleep,
	}, nil
}

// Name implements Downloader.
func (d *SingleSourceDownloader) Name() string { return "ddgs" }

// Download implements Downloader. The primary keyword is tried first; if it
// under-delivers, fixed suffix variants are tried in order until the target
// is met or the variants run out.
func (d *SingleSourceDownloader) Download(ctx context.Context, keyword, outDir string, maxNum int) (bool, int, error) {
	if err := validateTask(keyword, outDir, maxNum); err != nil {
		return false, 0, err
	}

	state := newSharedState(maxNum, fetch.CountImages(outDir))
	terms := append([]string{keyword}, fallbackTerms(keyword)...)

	for _, term := range terms {
		if state.ShouldStop() || ctx.Err() != nil {
			break
		}
		d.runTerm(ctx, term, outDir, maxNum, state)
	}

	downloaded := clampCount(state.Count(), maxNum)
	slog.Info("single source finished",
		slog.String("keyword", keyword),
		slog.Int("downloaded", downloaded),
		slog.Int("requested", maxNum),
	)
	return downloaded > 0, downloaded, nil
}

// runTerm queries once for the term and drains candidates through the
// worker pool until the shared target is met.
func (d *SingleSourceDownloader) runTerm(ctx context.Context, term, outDir string, maxNum int, state *sharedState) {
	candidates, err := d.searcher.Search(ctx, term, maxNum*overFetchFactor)
	if err != nil {
		d.metrics.IncError(errorTypeLabel(classifyError(err)))
		slog.Warn("single source query failed",
			slog.String("term", term),
			slog.Any("error", err),
		)
		return
	}

	fresh := candidates[:0]
	for _, url := range candidates {
		if ok, _ := d.seen.ContainsOrAdd(url, struct{}{}); !ok {
			fresh = append(fresh, url)
		}
	}

	limit := maxNum * 2
	if len(fresh) < limit {
		limit = len(fresh)
	}
	if limit == 0 {
		return
	}

	workers := d.cfg.Workers
	if workers > config.MaxWorkers {
		workers = config.MaxWorkers
	}
	if workers > limit {
		workers = limit
	}

	tasks := make(chan string, limit)
	for _, url := range fresh[:limit] {
		tasks <- url
	}
	close(tasks)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range tasks {
				if state.ShouldStop() || ctx.Err() != nil {
					return
				}
				if d.fetchOne(ctx, url, outDir, state) {
					state.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	slog.Debug("single source term drained",
		slog.String("term", term),
		slog.Int("candidates", len(fresh)),
		slog.Int("downloaded", state.Count()),
	)
}

// fetchOne downloads a single URL with bounded per-item retries. Validation
// failures are discarded immediately; transport failures back off in
// proportion to the attempt number.
func (d *SingleSourceDownloader) fetchOne(ctx context.Context, url, outDir string, state *sharedState) bool {
	// Reserve the name once; retrying the same URL must not burn indexes.
	name := fmt.Sprintf("%06d", state.NextIndexBlock(1))

	attempts := d.cfg.ItemRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := d.saver.SaveValid(ctx, url, outDir, name)
		if err == nil {
			return true
		}

		classified := classifyError(err)
		d.metrics.IncError(errorTypeLabel(classified))
		if !retryable(classified) || attempt == attempts || ctx.Err() != nil {
			slog.Debug("fetch item dropped",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return false
		}
		d.sleep(d.cfg.ItemBackoff * time.Duration(attempt))
	}
	return false
}
