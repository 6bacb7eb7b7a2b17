package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"blogplaces/models"
)

// Credentials holds the API secrets for both providers. They are loaded once
// at process start and threaded through explicitly.
type Credentials struct {
	NaverClientID     string
	NaverClientSecret string
	GoogleAPIKey      string
}

// Config holds one run's parameters.
type Config struct {
	Mode string // blog, text, or nearby

	Country    string
	Area       string
	Query      string
	ExtraHints []string
	Language   string

	MaxPosts      int
	MaxCandidates int
	MaxResults    int // hard cap for the Google-only modes
	TextPages     int
	RadiusM       int
	GridSteps     int

	AreaFilter   string // strict, loose, or none
	IncludeTypes []string
	ExcludeTypes []string
	MinRating    float64
	MinReviews   int
	OpenNowOnly  bool

	Details bool

	UseCache   bool
	ResetCache bool
	CacheFile  string

	OutDir  string
	OutName string // empty means a slug derived from area and query
	LogURLs bool

	Delay           time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string

	Verbose     bool
	LogFile     string
	MetricsAddr string

	Credentials Credentials
}

// DefaultConfig mirrors the operator-facing defaults of the original tool.
func DefaultConfig() *Config {
	return &Config{
		Mode:            models.ModeBlog,
		Language:        "ko",
		MaxPosts:        30,
		MaxCandidates:   150,
		MaxResults:      100,
		TextPages:       2,
		RadiusM:         10000,
		GridSteps:       2,
		AreaFilter:      "strict",
		UseCache:        true,
		CacheFile:       "output/seen_cache.json",
		OutDir:          "output",
		Delay:           300 * time.Millisecond,
		Timeout:         20 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 8 * time.Second,
		UserAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
	}
}

// Hints returns the full hint set: query tokens plus the extra terms.
func (c *Config) Hints() []string {
	hints := TokenizeQuery(c.Query)
	for _, h := range c.ExtraHints {
		h = strings.TrimSpace(h)
		if h != "" {
			hints = append(hints, h)
		}
	}
	return hints
}

// Validate ensures the configuration is coherent for the selected mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case models.ModeBlog, models.ModeText, models.ModeNearby:
	default:
		return fmt.Errorf("mode must be blog, text, or nearby, got %q", c.Mode)
	}
	if c.Country == "" {
		return fmt.Errorf("country cannot be empty")
	}
	if c.Query == "" && c.Mode != models.ModeNearby {
		return fmt.Errorf("query cannot be empty in %s mode", c.Mode)
	}
	switch c.AreaFilter {
	case "strict", "loose", "none":
	default:
		return fmt.Errorf("area filter must be strict, loose, or none, got %q", c.AreaFilter)
	}
	if c.MaxPosts <= 0 {
		return fmt.Errorf("max posts must be positive")
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive")
	}
	if c.TextPages <= 0 {
		return fmt.Errorf("text pages must be positive")
	}
	if c.RadiusM <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	if c.GridSteps <= 0 {
		return fmt.Errorf("grid steps must be positive")
	}
	if c.MinRating < 0 || c.MinRating > 5 {
		return fmt.Errorf("min rating must be within [0, 5]")
	}
	if c.MinReviews < 0 {
		return fmt.Errorf("min reviews cannot be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.OutDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.UseCache && c.CacheFile == "" {
		return fmt.Errorf("cache file cannot be empty when cache is enabled")
	}
	if c.Credentials.GoogleAPIKey == "" {
		return fmt.Errorf("google api key is required")
	}
	if c.Mode == models.ModeBlog {
		if c.Credentials.NaverClientID == "" || c.Credentials.NaverClientSecret == "" {
			return fmt.Errorf("naver client id and secret are required in blog mode")
		}
	}
	return nil
}

// TokenizeQuery splits a free-text query into hint tokens: comma/space
// separated words stripped down to Hangul, Latin letters, and digits, at
// least two characters long.
func TokenizeQuery(q string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(q, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	}) {
		var b strings.Builder
		for _, r := range w {
			if (r >= '가' && r <= '힣') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if tok := b.String(); len([]rune(tok)) >= 2 {
			out = append(out, tok)
		}
	}
	return out
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable, reporting presence.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// SplitList turns a comma-separated flag value into trimmed entries.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
