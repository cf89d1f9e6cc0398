package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-image-harvest/config"
)

type searchCall struct {
	query string
	max   int
}

// fakeSearcher serves canned URL lists per query and records every call.
type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results map[string][]string
	errs    map[string]error
}

func (f *fakeSearcher) Search(_ context.Context, query string, max int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{query: query, max: max})
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

func (f *fakeSearcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.query
	}
	return out
}

// fakeSaver writes a stub image file per successful save and can fail a URL
// a fixed number of times first.
type fakeSaver struct {
	mu       sync.Mutex
	failLeft map[string]int
	failWith error
	saved    []string
}

func (f *fakeSaver) SaveValid(_ context.Context, url, dir, baseName string) (string, error) {
	f.mu.Lock()
	if left, ok := f.failLeft[url]; ok && left > 0 {
		f.failLeft[url] = left - 1
		err := f.failWith
		f.mu.Unlock()
		if err == nil {
			err = ErrTimeout{Err: errors.New("stub failure")}
		}
		return "", err
	}
	f.saved = append(f.saved, url)
	f.mu.Unlock()

	path := filepath.Join(dir, baseName+".jpg")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeSaver) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func urlList(prefix string, n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://img.test/%s-%d.jpg", prefix, i)
	}
	return urls
}

func newTestSingleSource(t *testing.T, searcher Searcher, saver imageSaver) *SingleSourceDownloader {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	cfg.ItemBackoff = time.Millisecond
	d, err := newSingleSource(cfg, searcher, saver, NewMetrics())
	if err != nil {
		t.Fatalf("new single source: %v", err)
	}
	d.sleep = func(time.Duration) {}
	return d
}

func TestSingleSourceStopsAtTarget(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]string{"cat": urlList("cat", 20)}}
	saver := &fakeSaver{}
	d := newTestSingleSource(t, searcher, saver)

	ok, count, err := d.Download(context.Background(), "cat", t.TempDir(), 5)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok || count != 5 {
		t.Fatalf("result = (%v, %d), want (true, 5)", ok, count)
	}
	if got := searcher.queries(); len(got) != 1 || got[0] != "cat" {
		t.Fatalf("target met on primary term, but searcher saw %v", got)
	}
}

func TestSingleSourceEscalatesThroughSuffixVariants(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]string{
		"cat":       urlList("a", 2),
		"cat image": urlList("b", 2),
	}}
	saver := &fakeSaver{}
	d := newTestSingleSource(t, searcher, saver)

	ok, count, err := d.Download(context.Background(), "cat", t.TempDir(), 10)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok || count != 4 {
		t.Fatalf("result = (%v, %d), want (true, 4)", ok, count)
	}

	want := []string{"cat", "cat image", "cat photo", "cat high quality", "cat closeup", "cat detailed"}
	got := searcher.queries()
	if len(got) != len(want) {
		t.Fatalf("searcher queries = %v, want all fallback terms %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("query %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSingleSourceValidatesInput(t *testing.T) {
	d := newTestSingleSource(t, &fakeSearcher{}, &fakeSaver{})

	var cfgErr ErrConfiguration
	if _, _, err := d.Download(context.Background(), "", t.TempDir(), 5); !errors.As(err, &cfgErr) {
		t.Fatalf("empty keyword should be a configuration error, got %v", err)
	}
	if _, _, err := d.Download(context.Background(), "cat", "", 5); !errors.As(err, &cfgErr) {
		t.Fatalf("empty out dir should be a configuration error, got %v", err)
	}
	if _, _, err := d.Download(context.Background(), "cat", t.TempDir(), 0); !errors.As(err, &cfgErr) {
		t.Fatalf("zero target should be a configuration error, got %v", err)
	}

	// The output dir is created before any work.
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if _, _, err := d.Download(context.Background(), "cat", dir, 1); err != nil {
		t.Fatalf("download with missing dir: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("output dir was not created: %v", err)
	}
}

func TestSingleSourceRetriesTimeouts(t *testing.T) {
	url := "https://img.test/flaky.jpg"
	searcher := &fakeSearcher{results: map[string][]string{"cat": {url}}}
	saver := &fakeSaver{failLeft: map[string]int{url: 2}}
	d := newTestSingleSource(t, searcher, saver)

	var sleeps int
	d.sleep = func(time.Duration) { sleeps++ }

	dir := t.TempDir()
	_, count, err := d.Download(context.Background(), "cat", dir, 1)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 after retried timeouts", count)
	}
	if sleeps != 2 {
		t.Fatalf("slept %d times, want 2 (one per failed attempt)", sleeps)
	}
	// Failed attempts must not burn file indexes: the retried URL lands
	// under the first reserved name.
	if _, statErr := os.Stat(filepath.Join(dir, "000000.jpg")); statErr != nil {
		t.Fatalf("retried URL should keep its first reserved name: %v", statErr)
	}
}

func TestSingleSourceDoesNotRetryValidationFailures(t *testing.T) {
	url := "https://img.test/corrupt.jpg"
	searcher := &fakeSearcher{results: map[string][]string{"cat": {url}}}
	saver := &fakeSaver{
		failLeft: map[string]int{url: 99},
		failWith: ErrValidation{Err: errors.New("undecodable")},
	}
	d := newTestSingleSource(t, searcher, saver)

	ok, count, err := d.Download(context.Background(), "cat", t.TempDir(), 1)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if ok || count != 0 {
		t.Fatalf("result = (%v, %d), want (false, 0)", ok, count)
	}
	saver.mu.Lock()
	attempts := 99 - saver.failLeft[url]
	saver.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("validation failure was attempted %d times, want 1", attempts)
	}
}

func TestSingleSourceSkipsSeenURLs(t *testing.T) {
	shared := urlList("same", 1)
	searcher := &fakeSearcher{results: map[string][]string{
		"cat":       shared,
		"cat image": shared,
	}}
	saver := &fakeSaver{}
	d := newTestSingleSource(t, searcher, saver)

	_, count, err := d.Download(context.Background(), "cat", t.TempDir(), 5)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (duplicate URL deduped)", count)
	}
	if saver.savedCount() != 1 {
		t.Fatalf("saver called %d times, want 1", saver.savedCount())
	}
}

func TestSingleSourceSearchErrorIsNotFatal(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]string{"cat image": urlList("b", 3)},
		errs:    map[string]error{"cat": ErrRateLimited{Err: errors.New("throttled")}},
	}
	saver := &fakeSaver{}
	d := newTestSingleSource(t, searcher, saver)

	ok, count, err := d.Download(context.Background(), "cat", t.TempDir(), 3)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok || count != 3 {
		t.Fatalf("result = (%v, %d), want (true, 3) despite primary term failure", ok, count)
	}
}
