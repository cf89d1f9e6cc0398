package downloader

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// Searcher lists candidate image URLs for a query. The single-source
// downloader consumes it; tests substitute stubs.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]string, error)
}

var vqdPattern = regexp.MustCompile(`vqd=['"]?([\d-]+)['"]?`)

// ddgSearcher queries the keyless DuckDuckGo image endpoint: a first
// request obtains the vqd session token, a second one fetches the JSON
// result list.
type ddgSearcher struct {
	client *resty.Client
}

func newDDGSearcher(userAgent string, timeout time.Duration) *ddgSearcher {
	client := resty.New().SetTimeout(timeout)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &ddgSearcher{client: client}
}

func (d *ddgSearcher) Search(ctx context.Context, query string, max int) ([]string, error) {
	token, err := d.token(ctx, query)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"l":   "us-en",
			"o":   "json",
			"q":   query,
			"vqd": token,
			"f":   ",,,",
			"p":   "1",
		}).
		Get("https://duckduckgo.com/i.js")
	if err != nil {
		return nil, classifyError(fmt.Errorf("ddg results %q: %w", query, err))
	}
	if resp.StatusCode() == http.StatusForbidden || resp.StatusCode() == http.StatusTooManyRequests {
		return nil, ErrRateLimited{Err: fmt.Errorf("ddg results %q: http status %d", query, resp.StatusCode())}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ddg results %q: http status %d", query, resp.StatusCode())
	}

	var urls []string
	gjson.GetBytes(resp.Body(), "results").ForEach(func(_, item gjson.Result) bool {
		u := item.Get("image").String()
		if strings.HasPrefix(u, "https://") {
			urls = append(urls, u)
		}
		return len(urls) < max
	})
	return urls, nil
}

func (d *ddgSearcher) token(ctx context.Context, query string) (string, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"q": query, "iax": "images", "ia": "images"}).
		Get("https://duckduckgo.com/")
	if err != nil {
		return "", classifyError(fmt.Errorf("ddg token %q: %w", query, err))
	}
	match := vqdPattern.FindSubmatch(resp.Body())
	if len(match) < 2 {
		return "", fmt.Errorf("ddg token %q: vqd not found in response", query)
	}
	return string(match[1]), nil
}
