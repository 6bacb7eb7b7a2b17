package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blogplaces/collector"
	"blogplaces/config"
	"blogplaces/models"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Missing .env is fine; the variables may come from the environment.
	_ = godotenv.Load()

	defaults := config.DefaultConfig()
	delayDefault := int(defaults.Delay / time.Millisecond)
	if value, ok, err := config.EnvInt("BLOGPLACES_DELAY_MS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid BLOGPLACES_DELAY_MS: %v\n", err)
		os.Exit(1)
	} else if ok {
		delayDefault = value
	}
	outDirDefault := defaults.OutDir
	if value, ok := config.EnvString("BLOGPLACES_OUT_DIR"); ok {
		outDirDefault = value
	}

	mode := flag.String("mode", defaults.Mode, "Discovery mode: blog, text, or nearby")
	country := flag.String("country", "", "Target country name (required)")
	area := flag.String("area", "", "Region or city name (optional)")
	query := flag.String("query", "", "Search query")
	extraHints := flag.String("hints", "", "Extra hint terms, comma separated")
	language := flag.String("language", defaults.Language, "Result language code")
	maxPosts := flag.Int("max-posts", defaults.MaxPosts, "Blog posts to fetch (blog mode)")
	maxCandidates := flag.Int("max-candidates", defaults.MaxCandidates, "Candidates per page (blog mode)")
	maxResults := flag.Int("max-results", defaults.MaxResults, "Result cap for text/nearby modes")
	textPages := flag.Int("pages", defaults.TextPages, "Text-search pages (text mode)")
	radiusM := flag.Int("radius", defaults.RadiusM, "Search radius in metres")
	gridSteps := flag.Int("grid-steps", defaults.GridSteps, "Grid steps per axis (nearby mode)")
	areaFilter := flag.String("area-filter", defaults.AreaFilter, "Area address filter: strict, loose, or none")
	includeTypes := flag.String("include-types", "", "Category tags to require, comma separated")
	excludeTypes := flag.String("exclude-types", "", "Category tags to veto, comma separated")
	minRating := flag.Float64("min-rating", defaults.MinRating, "Minimum rating")
	minReviews := flag.Int("min-reviews", defaults.MinReviews, "Minimum review count")
	openNow := flag.Bool("open-now", false, "Keep only places open right now")
	details := flag.Bool("details", false, "Run the details enrichment pass")
	noCache := flag.Bool("no-cache", false, "Disable the seen cache")
	resetCache := flag.Bool("reset-cache", false, "Clear this run's seen-cache entry first")
	cacheFile := flag.String("cache-file", defaults.CacheFile, "Seen cache file path")
	outDir := flag.String("out-dir", outDirDefault, "Output directory")
	outName := flag.String("out-name", "", "Output base name (default: slug of area and query)")
	logURLs := flag.Bool("log-urls", false, "Write the crawled-URL log (blog mode)")
	delayMs := flag.Int("delay", delayDefault, "Delay between provider calls (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaults.Timeout/time.Second), "HTTP timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Retries on provider rate limiting")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	logFile := flag.String("log-file", "", "Also write JSON logs to this rotating file")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	runTimeoutMin := flag.Int("run-timeout", 15, "Overall run timeout (minutes)")

	flag.Parse()

	logger, level := newLogger(*verbose, *logFile)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaults
	cfg.Mode = *mode
	cfg.Country = *country
	cfg.Area = *area
	cfg.Query = *query
	cfg.ExtraHints = config.SplitList(*extraHints)
	cfg.Language = *language
	cfg.MaxPosts = *maxPosts
	cfg.MaxCandidates = *maxCandidates
	cfg.MaxResults = *maxResults
	cfg.TextPages = *textPages
	cfg.RadiusM = *radiusM
	cfg.GridSteps = *gridSteps
	cfg.AreaFilter = *areaFilter
	cfg.IncludeTypes = config.SplitList(*includeTypes)
	cfg.ExcludeTypes = config.SplitList(*excludeTypes)
	cfg.MinRating = *minRating
	cfg.MinReviews = *minReviews
	cfg.OpenNowOnly = *openNow
	cfg.Details = *details
	cfg.UseCache = !*noCache
	cfg.ResetCache = *resetCache
	cfg.CacheFile = *cacheFile
	cfg.OutDir = *outDir
	cfg.OutName = *outName
	cfg.LogURLs = *logURLs
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.MaxRetries = *maxRetries
	cfg.Verbose = *verbose
	cfg.LogFile = *logFile
	cfg.MetricsAddr = *metricsAddr
	cfg.Credentials = config.Credentials{
		NaverClientID:     os.Getenv("NAVER_CLIENT_ID"),
		NaverClientSecret: os.Getenv("NAVER_CLIENT_SECRET"),
		GoogleAPIKey:      firstEnv("GOOGLE_PLACES_API_KEY", "GOOGLE_MAPS_API_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting collection",
		slog.String("mode", cfg.Mode),
		slog.String("country", cfg.Country),
		slog.String("area", cfg.Area),
		slog.String("query", cfg.Query),
	)

	c, err := collector.New(cfg)
	if err != nil {
		slog.Error("initialising collector", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(*runTimeoutMin)*time.Minute)
	defer cancel()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()
	result, err := c.Run(ctx)
	if err != nil {
		slog.Error("collection failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		shutdownCancel()
	}

	printSummary(result, time.Since(startTime))
}

func printSummary(result *models.RunResult, duration time.Duration) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Written > 0 {
		fmt.Printf("Collection complete: %d records written\n", result.Written)
	} else {
		fmt.Println("Collection complete: zero records (filters too strict or nothing new)")
	}

	if result.Mode == models.ModeBlog {
		fmt.Printf("  Posts fetched:  %d\n", result.PostsFetched)
		fmt.Printf("  Pages parsed:   %d\n", result.PagesExtracted)
		fmt.Printf("  Candidates:     %d\n", result.Candidates)
	}
	fmt.Printf("  Resolved:       %d\n", result.Resolved)
	fmt.Printf("  Merged dupes:   %d\n", result.Merged)
	if len(result.SkippedByFilter) > 0 {
		fmt.Printf("  Filter skips:   %v\n", result.SkippedByFilter)
	}
	if result.SkippedSeen > 0 {
		fmt.Printf("  Seen skips:     %d\n", result.SkippedSeen)
	}
	if result.ItemErrors > 0 {
		fmt.Printf("  Item errors:    %d\n", result.ItemErrors)
	}
	fmt.Printf("  Duration:       %v\n", duration)
	if result.CSVPath != "" {
		fmt.Printf("  CSV:            %s\n", result.CSVPath)
		fmt.Printf("  GeoJSON:        %s\n", result.GeoJSONPath)
	}
	if result.ReviewsPath != "" {
		fmt.Printf("  Reviews:        %s\n", result.ReviewsPath)
	}
	if result.URLLogPath != "" {
		fmt.Printf("  URL log:        %s\n", result.URLLogPath)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool, logFile string) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if logFile != "" {
		sink := io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
		handler = slog.NewJSONHandler(sink, opts)
	} else if isTerminal(os.Stdout) {
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

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
