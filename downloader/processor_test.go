package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/aluiziolira/go-image-harvest/engines"
	"github.com/aluiziolira/go-image-harvest/models"
)

// stubEngine is an engines.Client with a bounded total capacity. It writes
// real stub files so directory re-scans see its output.
type stubEngine struct {
	name     string
	capacity int
	err      error
	panics   bool

	mu       sync.Mutex
	produced int
	offsets  []int
	queries  []string
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Fetch(_ context.Context, opts engines.Options) (int, error) {
	if s.panics {
		panic("stub parse fault")
	}
	s.mu.Lock()
	s.offsets = append(s.offsets, opts.Offset)
	s.queries = append(s.queries, opts.Query)
	if s.err != nil {
		s.mu.Unlock()
		return 0, s.err
	}
	n := opts.Limit
	if left := s.capacity - s.produced; n > left {
		n = left
	}
	s.produced += n
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		path := filepath.Join(opts.OutDir, fmt.Sprintf("%06d.jpg", opts.FileIndex+i))
		if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (s *stubEngine) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func newTestProcessor(t *testing.T, cfg *config.Config, clients []*stubEngine, searcher Searcher) (*EngineProcessor, *fakeSaver) {
	t.Helper()
	slots := make([]engineSlot, len(clients))
	for i, client := range clients {
		slots[i] = engineSlot{
			client: client,
			engCfg: models.EngineConfig{Name: client.name, OffsetLo: 0, OffsetHi: 10, VariationStep: 10},
		}
	}
	saver := &fakeSaver{}
	fallback, err := newSingleSource(cfg, searcher, saver, NewMetrics())
	if err != nil {
		t.Fatalf("build fallback: %v", err)
	}
	return &EngineProcessor{
		cfg:      cfg,
		slots:    slots,
		fallback: fallback,
		metrics:  NewMetrics(),
		stats:    make(map[string]*models.EngineStats),
	}, saver
}

func TestParallelEnginesMeetTargetWithoutFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	clients := []*stubEngine{
		{name: "google", capacity: 10},
		{name: "bing", capacity: 10},
		{name: "baidu", capacity: 10},
	}
	searcher := &fakeSearcher{}
	p, _ := newTestProcessor(t, cfg, clients, searcher)

	dir := t.TempDir()
	ok, count, err := p.Download(context.Background(), "cat", dir, 30)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok || count != 30 {
		t.Fatalf("result = (%v, %d), want (true, 30)", ok, count)
	}
	if calls := searcher.queries(); len(calls) != 0 {
		t.Fatalf("fallback was invoked (%v) although engines met the target", calls)
	}

	total := 0
	for _, stats := range p.Stats() {
		total += stats.DownloadCount
	}
	if total != 30 {
		t.Fatalf("per-engine stats sum to %d, want 30", total)
	}
}

func TestFallbackReceivesFullTargetWhenAllEnginesFail(t *testing.T) {
	cfg := config.DefaultConfig()
	clients := []*stubEngine{
		{name: "google", err: errors.New("blocked")},
		{name: "bing", err: errors.New("blocked")},
	}
	searcher := &fakeSearcher{}
	p, _ := newTestProcessor(t, cfg, clients, searcher)

	ok, count, err := p.Download(context.Background(), "cat", t.TempDir(), 12)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if ok || count != 0 {
		t.Fatalf("result = (%v, %d), want (false, 0) when fallback also yields nothing", ok, count)
	}

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	if len(searcher.calls) == 0 {
		t.Fatalf("fallback was not invoked")
	}
	first := searcher.calls[0]
	if first.query != "cat" {
		t.Fatalf("fallback first query = %q, want the original keyword", first.query)
	}
	if first.max != 12*overFetchFactor {
		t.Fatalf("fallback over-fetch = %d, want %d (full original target)", first.max, 12*overFetchFactor)
	}
}

func TestFallbackCoversShortfall(t *testing.T) {
	cfg := config.DefaultConfig()
	clients := []*stubEngine{{name: "google", capacity: 4}}
	searcher := &fakeSearcher{results: map[string][]string{"cat": urlList("fb", 20)}}
	p, _ := newTestProcessor(t, cfg, clients, searcher)

	ok, count, err := p.Download(context.Background(), "cat", t.TempDir(), 10)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok || count != 10 {
		t.Fatalf("result = (%v, %d), want (true, 10) with fallback covering shortfall", ok, count)
	}
	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	if searcher.calls[0].max != 6*overFetchFactor {
		t.Fatalf("fallback asked for %d candidates, want remainder 6 over-fetched to %d",
			searcher.calls[0].max, 6*overFetchFactor)
	}
}

func TestSequentialModePassesRemainingQuota(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeSequential
	first := &stubEngine{name: "google", capacity: 100}
	second := &stubEngine{name: "bing", capacity: 100}
	p, _ := newTestProcessor(t, cfg, []*stubEngine{first, second}, &fakeSearcher{})

	ok, count, err := p.Download(context.Background(), "cat", t.TempDir(), 10)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !ok || count != 10 {
		t.Fatalf("result = (%v, %d), want (true, 10)", ok, count)
	}
	if first.fetchCount() == 0 {
		t.Fatalf("first engine was never used")
	}
	if second.fetchCount() != 0 {
		t.Fatalf("second engine ran although the first met the quota")
	}
}

func TestOffsetSpreadAcrossVariations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VariationWorkers = 1 // deterministic processing order
	client := &stubEngine{name: "google", capacity: 0}
	proc := &singleEngineProcessor{
		client:  client,
		engCfg:  models.EngineConfig{Name: "google", OffsetLo: 0, OffsetHi: 20, VariationStep: 20},
		cfg:     cfg,
		metrics: NewMetrics(),
	}

	state := newSharedState(20, 0)
	result := proc.Process(context.Background(), "cat", t.TempDir(), 20, state)

	if len(result.Variations) != 4 {
		t.Fatalf("processed %d variations for target 20, want 4", len(result.Variations))
	}
	client.mu.Lock()
	offsets := append([]int(nil), client.offsets...)
	client.mu.Unlock()

	base := offsets[0]
	if base < 0 || base >= 20 {
		t.Fatalf("base offset %d outside configured range [0, 20)", base)
	}
	for i, offset := range offsets {
		if offset != base+i*20 {
			t.Fatalf("variation %d offset = %d, want base %d + %d", i, offset, base, i*20)
		}
	}
	if offsets[3]-offsets[0] != 60 {
		t.Fatalf("offset spread between variation 0 and 3 = %d, want 60", offsets[3]-offsets[0])
	}
}

func TestEngineResultAggregateConsistency(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VariationWorkers = 2
	client := &stubEngine{name: "bing", capacity: 7}
	proc := &singleEngineProcessor{
		client:  client,
		engCfg:  models.EngineConfig{Name: "bing", OffsetLo: 0, OffsetHi: 5, VariationStep: 10},
		cfg:     cfg,
		metrics: NewMetrics(),
	}

	state := newSharedState(15, 0)
	result := proc.Process(context.Background(), "cat", t.TempDir(), 15, state)

	sum := 0
	successful := 0
	for _, v := range result.Variations {
		sum += v.Downloaded
		if v.Success {
			successful++
		}
	}
	if result.TotalDownloaded != sum {
		t.Fatalf("total %d != variation sum %d", result.TotalDownloaded, sum)
	}
	wantRate := float64(successful) / float64(len(result.Variations))
	if result.SuccessRate != wantRate {
		t.Fatalf("success rate %f, want %f", result.SuccessRate, wantRate)
	}
}

func TestEnginePanicIsRecoveredAsFailedVariation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VariationWorkers = 1
	proc := &singleEngineProcessor{
		client:  &stubEngine{name: "google", panics: true},
		engCfg:  models.EngineConfig{Name: "google", OffsetLo: 0, OffsetHi: 5, VariationStep: 10},
		cfg:     cfg,
		metrics: NewMetrics(),
	}

	state := newSharedState(10, 0)
	result := proc.Process(context.Background(), "cat", t.TempDir(), 10, state)

	if len(result.Variations) == 0 {
		t.Fatalf("panicking client should still yield variation results")
	}
	for _, v := range result.Variations {
		if v.Success {
			t.Fatalf("variation %q marked successful despite client fault", v.Variation)
		}
		if v.Error == "" {
			t.Fatalf("variation %q missing fault description", v.Variation)
		}
	}
	if result.SuccessRate != 0 {
		t.Fatalf("success rate = %f, want 0", result.SuccessRate)
	}
}

func TestEngineErrorDoesNotAbortSiblingVariations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VariationWorkers = 1
	client := &stubEngine{name: "baidu", err: errors.New("bad payload")}
	proc := &singleEngineProcessor{
		client:  client,
		engCfg:  models.EngineConfig{Name: "baidu", OffsetLo: 0, OffsetHi: 5, VariationStep: 10},
		cfg:     cfg,
		metrics: NewMetrics(),
	}

	state := newSharedState(10, 0)
	result := proc.Process(context.Background(), "cat", t.TempDir(), 10, state)

	if got := len(result.Variations); got != 3 {
		t.Fatalf("processed %d variations, want all 3 despite per-variation errors", got)
	}
}

func TestDownloadValidatesTask(t *testing.T) {
	cfg := config.DefaultConfig()
	p, _ := newTestProcessor(t, cfg, []*stubEngine{{name: "google", capacity: 1}}, &fakeSearcher{})

	var cfgErr ErrConfiguration
	if _, _, err := p.Download(context.Background(), "", t.TempDir(), 5); !errors.As(err, &cfgErr) {
		t.Fatalf("empty keyword should fail validation, got %v", err)
	}
	if _, _, err := p.Download(context.Background(), "cat", t.TempDir(), -1); !errors.As(err, &cfgErr) {
		t.Fatalf("negative target should fail validation, got %v", err)
	}
}
