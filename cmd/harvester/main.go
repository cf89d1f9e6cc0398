package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/aluiziolira/go-image-harvest/downloader"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	retriesDefault := defaultCfg.MaxRetries
	if value, ok, err := config.EnvInt("HARVEST_RETRIES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_RETRIES: %v\n", err)
		os.Exit(1)
	} else if ok {
		retriesDefault = value
	}
	workersDefault := defaultCfg.Workers
	if value, ok, err := config.EnvInt("HARVEST_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid HARVEST_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		workersDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("HARVEST_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("HARVEST_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	keyword := flag.String("keyword", "", "Search keyword to acquire images for (required)")
	maxNum := flag.Int("max-num", 100, "Number of images to acquire")
	enginesFlag := flag.String("engines", strings.Join(defaultCfg.Engines, ","), "Comma-separated engine list")
	mode := flag.String("mode", defaultCfg.Mode, "Engine processing mode: parallel or sequential")
	strategy := flag.String("strategy", defaultCfg.Strategy, "Retry strategy: alternating, engine_only, or ddgs_only")
	name := flag.String("downloader", "auto", "Downloader to use: auto, engine, or ddgs")
	maxRetries := flag.Int("max-retries", retriesDefault, "Maximum retry attempts per keyword")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Backoff between retries (milliseconds)")
	workers := flag.Int("workers", workersDefault, "Single-source fetch pool width")
	variationWorkers := flag.Int("variation-workers", defaultCfg.VariationWorkers, "Per-engine variation pool width")
	rateLimit := flag.Int("rate-limit", defaultCfg.RateLimit, "Requests admitted per rate window, per engine")
	rateWindowMs := flag.Int("rate-window", int(defaultCfg.RateWindow/time.Millisecond), "Rate limit window (milliseconds)")
	fetchTimeoutS := flag.Int("fetch-timeout", int(defaultCfg.FetchTimeout/time.Second), "Per-image fetch timeout (seconds)")
	minBytes := flag.Int64("min-bytes", defaultCfg.MinImageBytes, "Minimum accepted image size in bytes")
	maxBytes := flag.Int64("max-bytes", defaultCfg.MaxImageBytes, "Maximum accepted image size in bytes")
	outputDir := flag.String("output", outputDefault, "Output directory root")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *keyword == "" {
		fmt.Fprintln(os.Stderr, "a -keyword is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg := defaultCfg
	cfg.Engines = splitEngines(*enginesFlag)
	cfg.Mode = strings.ToLower(*mode)
	cfg.Strategy = strings.ToLower(*strategy)
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.Workers = *workers
	cfg.VariationWorkers = *variationWorkers
	cfg.RateLimit = *rateLimit
	cfg.RateWindow = time.Duration(*rateWindowMs) * time.Millisecond
	cfg.FetchTimeout = time.Duration(*fetchTimeoutS) * time.Second
	cfg.MinImageBytes = *minBytes
	cfg.MaxImageBytes = *maxBytes
	cfg.OutputDir = *outputDir
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := downloader.NewMetrics()
	registry := downloader.NewDefaultRegistry()
	factory := registry.Get(*name)
	if factory == nil {
		slog.Error("unknown downloader", slog.String("name", *name))
		for entry, meta := range registry.ListAll() {
			slog.Info("available downloader", slog.String("name", entry), slog.String("description", meta.Description))
		}
		os.Exit(1)
	}
	dl, err := factory(cfg, metrics)
	if err != nil {
		slog.Error("initialising downloader", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight fetches to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	outDir := filepath.Join(cfg.OutputDir, sanitizeKeyword(*keyword))
	slog.Info("starting acquisition",
		slog.String("keyword", *keyword),
		slog.Int("max_num", *maxNum),
		slog.String("downloader", dl.Name()),
		slog.String("engines", strings.Join(cfg.Engines, ",")),
		slog.String("dir", outDir),
	)

	startTime := time.Now()
	ok, count, err := dl.Download(ctx, *keyword, outDir, *maxNum)
	duration := time.Since(startTime)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", shutdownErr))
		}
		cancel()
	}

	if err != nil {
		slog.Error("acquisition failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(dl, *keyword, outDir, ok, count, *maxNum, duration)
}

// splitEngines parses the comma-separated -engines flag, dropping empty
// entries so trailing commas are harmless.
func splitEngines(raw string) []string {
	parts := strings.Split(raw, ",")
	engines := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.ToLower(strings.TrimSpace(part)); name != "" {
			engines = append(engines, name)
		}
	}
	return engines
}

// sanitizeKeyword maps a keyword to a directory-safe name.
func sanitizeKeyword(keyword string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		case ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(keyword))
	if mapped == "" {
		return "keyword"
	}
	return mapped
}

func printSummary(dl downloader.Downloader, keyword, outDir string, ok bool, count, maxNum int, duration time.Duration) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Acquisition complete")
	fmt.Printf("  Keyword:       %s\n", keyword)
	fmt.Printf("  Downloaded:    %d of %d requested\n", count, maxNum)
	fmt.Printf("  Complete:      %v\n", ok && count >= maxNum)

	if ctrl, hasStats := dl.(*downloader.RetryController); hasStats {
		stats := ctrl.Stats()
		fmt.Printf("  Attempts:      %d\n", stats.TotalAttempts)
		if retries := stats.TotalAttempts - 1; retries > 0 {
			fmt.Printf("  Retries:       %d\n", retries)
		}
		if stats.DuplicatesRemoved > 0 {
			fmt.Printf("  Duplicates:    %d\n", stats.DuplicatesRemoved)
		}
		fmt.Printf("  Renamed:       %d\n", stats.ImagesRenamed)
	}

	imagesPerSec := 0.0
	if duration.Seconds() > 0 {
		imagesPerSec = float64(count) / duration.Seconds()
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Images/sec:    %.2f\n", imagesPerSec)
	fmt.Printf("  Output dir:    %s\n", outDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
