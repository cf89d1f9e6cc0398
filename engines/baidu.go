package engines

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-image-harvest/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const baiduEndpoint = "https://image.baidu.com/search/acjson"

type baiduClient struct {
	cfg     Config
	client  *resty.Client
	limiter *ratelimit.Limiter
}

func newBaidu(cfg Config) *baiduClient {
	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Transport != nil {
		client.SetTransport(cfg.Transport)
	}
	return &baiduClient{cfg: cfg, client: client, limiter: newLimiter(cfg)}
}

func (b *baiduClient) Name() string { return "baidu" }

// Fetch queries Baidu's JSON image search endpoint. The offset maps to the
// provider's "pn" cursor.
func (b *baiduClient) Fetch(ctx context.Context, opts Options) (int, error) {
	if err := opts.validate(); err != nil {
		return 0, fmt.Errorf("baidu: %w", err)
	}

	b.limiter.Acquire()
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tn":    "resultjson_com",
			"ipn":   "rj",
			"word":  opts.Query,
			"pn":    fmt.Sprintf("%d", opts.Offset),
			"rn":    fmt.Sprintf("%d", opts.Limit*2),
			"ie":    "utf-8",
			"oe":    "utf-8",
			"istop": "2",
		}).
		Get(baiduEndpoint)
	if err != nil {
		return 0, fmt.Errorf("baidu query %q: %w", opts.Query, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("baidu query %q: http status %d", opts.Query, resp.StatusCode())
	}

	var candidates []string
	gjson.GetBytes(resp.Body(), "data").ForEach(func(_, item gjson.Result) bool {
		u := item.Get("middleURL").String()
		if u == "" {
			u = item.Get("thumbURL").String()
		}
		if strings.HasPrefix(u, "https://") {
			candidates = append(candidates, u)
		}
		return true
	})

	candidates = dedupeURLs(candidates)
	slog.Debug("baidu candidates collected",
		slog.String("query", opts.Query),
		slog.Int("offset", opts.Offset),
		slog.Int("candidates", len(candidates)),
	)
	return saveCandidates(ctx, b.cfg.Saver, candidates, opts), nil
}
