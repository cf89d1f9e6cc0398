package engines

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-image-harvest/ratelimit"
	"github.com/gocolly/colly/v2"
	"github.com/tidwall/gjson"
)

type bingClient struct {
	cfg     Config
	limiter *ratelimit.Limiter
}

func newBing(cfg Config) *bingClient {
	return &bingClient{cfg: cfg, limiter: newLimiter(cfg)}
}

func (b *bingClient) Name() string { return "bing" }

// Fetch queries one Bing Images result page. Bing embeds the full-size image
// URL as JSON in the "m" attribute of each result anchor; the offset maps to
// the provider's "first" cursor.
func (b *bingClient) Fetch(ctx context.Context, opts Options) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, fmt.Errorf("bing: %w", err)
	}

	searchURL := fmt.Sprintf(
		"https://www.bing.com/images/search?q=%s&first=%d&count=%d",
		url.QueryEscape(opts.Query), opts.Offset, opts.Limit*2,
	)

	var candidates []string
	collector := newCollector(b.cfg)
	collector.OnHTML("a.iusc", func(e *colly.HTMLElement) {
		meta := e.Attr("m")
		if meta == "" {
			return
		}
		murl := gjson.Get(meta, "murl").String()
		if !strings.HasPrefix(murl, "https://") {
			return
		}
		candidates = append(candidates, murl)
	})

	b.limiter.Acquire()
	if err := collector.Visit(searchURL); err != nil {
		return 0, fmt.Errorf("bing query %q: %w", opts.Query, err)
	}
	collector.Wait()

	candidates = dedupeURLs(candidates)
	slog.Debug("bing candidates collected",
		slog.String("query", opts.Query),
		slog.Int("offset", opts.Offset),
		slog.Int("candidates", len(candidates)),
	)
	return saveCandidates(ctx, b.cfg.Saver, candidates, opts), nil
}
