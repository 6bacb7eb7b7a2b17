// Package collector wires the discovery modes together: blog-driven
// candidate extraction, plain text search, and grid-tiled nearby search all
// feed one resolver, aggregator, and exporter.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"blogplaces/cache"
	"blogplaces/config"
	"blogplaces/extract"
	"blogplaces/models"
	"blogplaces/naver"
	"blogplaces/pipeline"
	"blogplaces/places"

	"github.com/gosimple/slug"
)

// Collector runs one end-to-end collection.
type Collector struct {
	cfg      *config.Config
	blogs    *naver.Client
	client   *places.Client
	resolver *places.Resolver
	fetcher  *extract.Fetcher
	Metrics  *Metrics
}

// New builds a collector from a validated configuration.
func New(cfg *config.Config) (*Collector, error) {
	client, err := places.NewClient(cfg.Credentials.GoogleAPIKey, cfg.Language, cfg.UserAgent, cfg.Timeout, nil)
	if err != nil {
		return nil, fmt.Errorf("places client: %w", err)
	}

	resolver := places.NewResolver(client)
	resolver.Area = cfg.Area
	resolver.Country = cfg.Country
	resolver.AreaFilter = cfg.AreaFilter
	resolver.IncludeTypes = cfg.IncludeTypes
	resolver.ExcludeTypes = cfg.ExcludeTypes
	resolver.MinRating = cfg.MinRating
	resolver.MinReviews = cfg.MinReviews
	resolver.OpenNowOnly = cfg.OpenNowOnly
	resolver.RadiusM = cfg.RadiusM
	resolver.Delay = cfg.Delay
	resolver.MaxRetries = cfg.MaxRetries
	resolver.RetryBackoff = cfg.RetryBackoff
	resolver.RetryBackoffMax = cfg.RetryBackoffMax
	resolver.VerifyCountry = cfg.Mode == models.ModeBlog

	c := &Collector{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		Metrics:  NewMetrics(),
	}

	if cfg.Mode == models.ModeBlog {
		c.blogs = naver.NewClient(cfg.Credentials.NaverClientID, cfg.Credentials.NaverClientSecret, cfg.Timeout, nil)
		fetcher, err := extract.NewFetcher(cfg.UserAgent, cfg.Timeout, cfg.Delay)
		if err != nil {
			return nil, fmt.Errorf("page fetcher: %w", err)
		}
		c.fetcher = fetcher
	}
	return c, nil
}

// Run executes the configured mode and writes the output files. A run that
// survives to export with zero records is a valid outcome, reported through
// RunResult rather than an error.
func (c *Collector) Run(ctx context.Context) (*models.RunResult, error) {
	started := time.Now()
	defer func() { c.Metrics.ObserveRun(time.Since(started)) }()

	cfg := c.cfg
	result := &models.RunResult{
		Mode:            cfg.Mode,
		SkippedByFilter: make(map[string]int),
	}

	loc, countryCode, geoErr := c.client.Geocode(ctx, cfg.Area, cfg.Country)
	if geoErr != nil {
		// Only text mode may proceed, and only when the service matched
		// nothing; transport and API failures abort the run in every mode.
		if cfg.Mode != models.ModeText || !errors.Is(geoErr, places.ErrNotFound) {
			return nil, fmt.Errorf("geocode %q, %q: %w", cfg.Area, cfg.Country, geoErr)
		}
		slog.Warn("search area not found, proceeding without location bias", slog.Any("error", geoErr))
	} else {
		c.resolver.Center = &loc
		c.resolver.CountryCode = countryCode
		slog.Info("geocoded search area",
			slog.Float64("lat", loc.Lat), slog.Float64("lng", loc.Lng),
			slog.String("country_code", countryCode))
	}

	var seen *cache.SeenCache
	key := cache.Key(cfg.Mode, cfg.Country, cfg.Area, cfg.Query, strings.Join(cfg.Hints(), ","))
	if cfg.UseCache {
		seen = cache.Load(cfg.CacheFile)
		if cfg.ResetCache {
			seen.Reset(key)
		}
	}

	agg := pipeline.NewAggregator()
	var urlLog []models.URLLogEntry
	var err error

	switch cfg.Mode {
	case models.ModeBlog:
		urlLog, err = c.runBlog(ctx, seen, key, agg, result)
	case models.ModeText:
		err = c.runText(ctx, seen, key, agg, result)
	case models.ModeNearby:
		err = c.runNearby(ctx, loc, seen, key, agg, result)
	}
	if err != nil && agg.Len() == 0 {
		return nil, err
	}
	if err != nil {
		slog.Warn("collection ended early, keeping partial results", slog.Any("error", err))
	}

	finalPlaces := agg.Places()
	result.Merged = agg.Merged()

	var reviews []models.Review
	if cfg.Details && len(finalPlaces) > 0 {
		reviews = c.resolver.EnrichDetails(ctx, finalPlaces)
		result.Reviews = len(reviews)
	}

	if len(finalPlaces) > 0 {
		if err := c.export(finalPlaces, reviews, urlLog, result); err != nil {
			return nil, err
		}
	} else {
		slog.Info("no records survived filtering, skipping output files")
	}
	result.Written = len(finalPlaces)

	if seen != nil {
		if err := seen.Save(); err != nil {
			slog.Error("saving seen cache failed", slog.Any("error", err))
		}
	}
	return result, nil
}

func (c *Collector) runBlog(ctx context.Context, seen *cache.SeenCache, key string, agg *pipeline.Aggregator, result *models.RunResult) ([]models.URLLogEntry, error) {
	urls, err := c.blogs.SearchPosts(ctx, c.cfg.Query, c.cfg.MaxPosts)
	if err != nil {
		if len(urls) == 0 {
			return nil, fmt.Errorf("blog search: %w", err)
		}
		slog.Warn("blog search ended early, using partial page list",
			slog.Int("urls", len(urls)), slog.Any("error", err))
	}
	result.PostsFetched = len(urls)
	c.Metrics.AddPosts(len(urls))

	hints := c.cfg.Hints()
	var urlLog []models.URLLogEntry

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return urlLog, err
		}
		if seen != nil && seen.Seen(key, url) {
			result.SkippedSeen++
			continue
		}

		doc, err := c.fetcher.FetchDocument(url)
		if err != nil {
			slog.Warn("skipping blog page", slog.String("url", url), slog.Any("error", err))
			result.ItemErrors++
			c.Metrics.IncItemError()
			continue
		}
		result.PagesExtracted++
		c.Metrics.IncPage()

		candidates := extract.Candidates(doc.Text, hints, c.cfg.MaxCandidates, doc.Language)
		result.Candidates += len(candidates)
		c.Metrics.AddCandidates(len(candidates))
		slog.Debug("extracted candidates",
			slog.String("url", url), slog.Int("count", len(candidates)))

		contributed := 0
		for _, name := range candidates {
			if err := ctx.Err(); err != nil {
				return urlLog, err
			}
			place, reason, err := c.resolver.ResolveCandidate(ctx, models.Candidate{Name: name, SourceURL: url})
			if err != nil {
				slog.Warn("resolution failed", slog.String("candidate", name), slog.Any("error", err))
				result.ItemErrors++
				c.Metrics.IncItemError()
				continue
			}
			if reason != "" {
				result.SkippedByFilter[reason]++
				c.Metrics.IncSkip(reason)
				continue
			}
			agg.Add(place)
			result.Resolved++
			contributed++
			c.Metrics.IncResolved()
		}
		urlLog = append(urlLog, models.URLLogEntry{BlogURL: url, PlaceCount: contributed})

		if seen != nil {
			seen.Add(key, url)
		}
	}
	return urlLog, nil
}

// maxResultsCap bounds any single search-mode run regardless of how high the
// results flag is set.
const maxResultsCap = 100

func (c *Collector) runText(ctx context.Context, seen *cache.SeenCache, key string, agg *pipeline.Aggregator, result *models.RunResult) error {
	query := strings.TrimSpace(strings.Join(compact(c.cfg.Query, c.cfg.Area, c.cfg.Country), " "))
	found, err := c.resolver.CollectText(ctx, query, c.cfg.TextPages, capResults(c.cfg.MaxResults))
	c.addFound(found, seen, key, agg, result)
	return err
}

func (c *Collector) runNearby(ctx context.Context, center places.LatLng, seen *cache.SeenCache, key string, agg *pipeline.Aggregator, result *models.RunResult) error {
	found, err := c.resolver.CollectNearby(ctx, center, c.cfg.RadiusM, c.cfg.GridSteps, capResults(c.cfg.MaxResults))
	c.addFound(found, seen, key, agg, result)
	return err
}

func (c *Collector) addFound(found []*models.Place, seen *cache.SeenCache, key string, agg *pipeline.Aggregator, result *models.RunResult) {
	for _, p := range found {
		if seen != nil && p.PlaceID != "" && seen.Seen(key, p.PlaceID) {
			result.SkippedSeen++
			continue
		}
		agg.Add(p)
		result.Resolved++
		c.Metrics.IncResolved()
	}
	// Ids are recorded only after the pass, so the same place surfacing at
	// several grid points within one run merges in the aggregator instead of
	// tripping the seen check.
	if seen != nil {
		for _, p := range found {
			seen.Add(key, p.PlaceID)
		}
	}
}

func capResults(n int) int {
	if n > maxResultsCap {
		return maxResultsCap
	}
	return n
}

func (c *Collector) export(finalPlaces []*models.Place, reviews []models.Review, urlLog []models.URLLogEntry, result *models.RunResult) error {
	base := c.cfg.OutName
	if base == "" {
		region := c.cfg.Area
		if region == "" {
			region = c.cfg.Country
		}
		base = slug.Make(region + "-" + c.cfg.Query)
	}

	result.CSVPath = filepath.Join(c.cfg.OutDir, base+".csv")
	if err := pipeline.WritePlacesCSV(result.CSVPath, finalPlaces); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	result.GeoJSONPath = filepath.Join(c.cfg.OutDir, base+".geojson")
	if err := pipeline.WriteGeoJSON(result.GeoJSONPath, finalPlaces); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	if len(reviews) > 0 {
		result.ReviewsPath = filepath.Join(c.cfg.OutDir, base+"_reviews.csv")
		if err := pipeline.WriteReviewsCSV(result.ReviewsPath, reviews); err != nil {
			return fmt.Errorf("write reviews: %w", err)
		}
	}
	if c.cfg.LogURLs && len(urlLog) > 0 {
		result.URLLogPath = filepath.Join(c.cfg.OutDir, "crawled_urls.csv")
		if err := pipeline.WriteURLLog(result.URLLogPath, urlLog); err != nil {
			return fmt.Errorf("write url log: %w", err)
		}
	}
	return nil
}

func compact(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// IsNotFound reports whether err stems from an empty geocoding result.
func IsNotFound(err error) bool {
	return errors.Is(err, places.ErrNotFound)
}
