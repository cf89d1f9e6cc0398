// Package engines implements the crawler-backed image search clients. Each
// client turns one (query, limit, offset) request into files on disk, going
// through the shared fetch primitive and its own rate limiter.
package engines

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aluiziolira/go-image-harvest/fetch"
	"github.com/aluiziolira/go-image-harvest/ratelimit"
)

// Options describes one fetch pass against an engine.
type Options struct {
	Query     string
	Limit     int
	Offset    int // provider-side pagination cursor
	FileIndex int // first index used for output file names
	OutDir    string
}

// Client is the contract every engine implements. Fetch returns how many
// valid images were written to Options.OutDir.
type Client interface {
	Name() string
	Fetch(ctx context.Context, opts Options) (int, error)
}

// Config carries the shared collaborators an engine client needs.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	RateLimit int
	RateWin   time.Duration
	Saver     *fetch.Saver

	// Transport overrides the HTTP transport; used by tests.
	Transport http.RoundTripper
}

// New builds the named engine client.
func New(name string, cfg Config) (Client, error) {
	switch name {
	case "google":
		return newGoogle(cfg), nil
	case "bing":
		return newBing(cfg), nil
	case "baidu":
		return newBaidu(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// Known lists the engine names New accepts, in default scheduling order.
func Known() []string {
	return []string{"google", "bing", "baidu"}
}

func (o Options) validate() error {
	if o.Query == "" {
		return fmt.Errorf("empty query")
	}
	if o.OutDir == "" {
		return fmt.Errorf("empty output dir")
	}
	if o.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

// saveCandidates downloads candidate URLs until limit valid images are on
// disk or the context is cancelled. Individual failures are skipped; the
// next candidate takes the same file index.
func saveCandidates(ctx context.Context, saver *fetch.Saver, urls []string, opts Options) int {
	saved := 0
	index := opts.FileIndex
	for _, url := range urls {
		if saved >= opts.Limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		name := fmt.Sprintf("%06d", index)
		if _, err := saver.SaveValid(ctx, url, opts.OutDir, name); err != nil {
			continue
		}
		saved++
		index++
	}
	return saved
}

func newLimiter(cfg Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit, cfg.RateWin)
}
