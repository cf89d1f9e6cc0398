package engines

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-image-harvest/ratelimit"
	"github.com/gocolly/colly/v2"
)

type googleClient struct {
	cfg     Config
	limiter *ratelimit.Limiter
}

func newGoogle(cfg Config) *googleClient {
	return &googleClient{cfg: cfg, limiter: newLimiter(cfg)}
}

func (g *googleClient) Name() string { return "google" }

// Fetch queries one Google Images result page and downloads candidates from
// it. The offset maps to the provider's "start" cursor.
func (g *googleClient) Fetch(ctx context.Context, opts Options) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, fmt.Errorf("google: %w", err)
	}

	searchURL := fmt.Sprintf(
		"https://www.google.com/search?tbm=isch&q=%s&start=%d",
		url.QueryEscape(opts.Query), opts.Offset,
	)

	var candidates []string
	collector := newCollector(g.cfg)
	collector.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("img").Each(func(_ int, sel *goquery.Selection) {
			src, ok := sel.Attr("data-src")
			if !ok {
				src, ok = sel.Attr("src")
			}
			if !ok || !strings.HasPrefix(src, "https://") {
				return
			}
			candidates = append(candidates, src)
		})
	})

	g.limiter.Acquire()
	if err := collector.Visit(searchURL); err != nil {
		return 0, fmt.Errorf("google query %q: %w", opts.Query, err)
	}
	collector.Wait()

	candidates = dedupeURLs(candidates)
	slog.Debug("google candidates collected",
		slog.String("query", opts.Query),
		slog.Int("offset", opts.Offset),
		slog.Int("candidates", len(candidates)),
	)
	return saveCandidates(ctx, g.cfg.Saver, candidates, opts), nil
}

// newCollector builds a synchronous collector with the shared transport
// settings. One collector per Fetch keeps handler state per call.
func newCollector(cfg Config) *colly.Collector {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; harvester/1.0)"
	}
	collector := colly.NewCollector(colly.UserAgent(userAgent))
	collector.IgnoreRobotsTxt = true
	if cfg.Timeout > 0 {
		collector.SetRequestTimeout(cfg.Timeout)
	}
	if cfg.Transport != nil {
		collector.WithTransport(cfg.Transport)
	}
	return collector
}

func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
