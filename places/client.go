// Package places implements the Google geocoding and place-search client and
// the candidate resolution rules built on top of it.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	geocodeEndpoint    = "https://maps.googleapis.com/maps/api/geocode/json"
	textSearchEndpoint = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	nearbyEndpoint     = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	detailsEndpoint    = "https://maps.googleapis.com/maps/api/place/details/json"

	countryCacheSize = 2048
)

// countryCodeFallback patches over geocoding responses that omit the country
// address component for a handful of Korean country names the tool is used
// with. It is a narrow lookup table, not a country-name resolver; do not
// grow it ad hoc.
var countryCodeFallback = map[string]string{
	"일본":   "JP",
	"한국":   "KR",
	"대한민국": "KR",
	"태국":   "TH",
	"필리핀":  "PH",
	"베트남":  "VN",
	"대만":   "TW",
}

// Client issues geocode, text-search, nearby-search, and details requests.
// Details-based country lookups are memoised so duplicate candidates do not
// re-spend quota.
type Client struct {
	httpClient *http.Client
	key        string
	language   string
	userAgent  string

	countryCache *lru.Cache[string, string]
}

// NewClient builds a client. A nil httpClient falls back to a default with
// the given timeout.
func NewClient(key, language, userAgent string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	cache, err := lru.New[string, string](countryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create country cache: %w", err)
	}
	return &Client{
		httpClient:   httpClient,
		key:          key,
		language:     language,
		userAgent:    userAgent,
		countryCache: cache,
	}, nil
}

// Geocode resolves "{area}, {country}" to a center coordinate and country
// short code. ErrNotFound is returned when the service matches nothing;
// geocoding is a prerequisite, so HTTP failures propagate untouched.
func (c *Client) Geocode(ctx context.Context, area, country string) (LatLng, string, error) {
	target := strings.Trim(strings.TrimSpace(joinNonEmpty(area, country)), ", ")
	if target == "" {
		return LatLng{}, "", fmt.Errorf("geocode: empty target")
	}

	params := url.Values{}
	params.Set("address", target)
	params.Set("key", c.key)
	params.Set("language", c.language)

	var parsed geocodeResponse
	if err := c.get(ctx, geocodeEndpoint, params, &parsed); err != nil {
		return LatLng{}, "", fmt.Errorf("geocode %q: %w", target, err)
	}
	if err := statusError(parsed.Status, parsed.ErrorMessage); err != nil {
		return LatLng{}, "", fmt.Errorf("geocode %q: %w", target, err)
	}
	if len(parsed.Results) == 0 {
		return LatLng{}, "", ErrNotFound
	}

	first := parsed.Results[0]
	code := countryShortCode(first.AddressComponents)
	if code == "" {
		code = countryCodeFallback[strings.TrimSpace(country)]
	}
	return first.Geometry.Location, code, nil
}

// TextSearch issues one page of a free-text place search. Pass the previous
// page's token to continue; the caller owns the token settle delay.
func (c *Client) TextSearch(ctx context.Context, query string, loc *LatLng, radiusM int, pageToken string) (*Page, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.key)
	params.Set("language", c.language)
	if loc != nil && radiusM > 0 {
		params.Set("location", formatLatLng(*loc))
		params.Set("radius", strconv.Itoa(radiusM))
	}
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	}
	return c.searchPage(ctx, textSearchEndpoint, params)
}

// NearbySearch issues one page of a nearby search for a single category tag.
func (c *Client) NearbySearch(ctx context.Context, loc LatLng, radiusM int, placeType, pageToken string) (*Page, error) {
	params := url.Values{}
	params.Set("location", formatLatLng(loc))
	params.Set("radius", strconv.Itoa(radiusM))
	params.Set("type", placeType)
	params.Set("key", c.key)
	params.Set("language", c.language)
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	}
	return c.searchPage(ctx, nearbyEndpoint, params)
}

func (c *Client) searchPage(ctx context.Context, endpoint string, params url.Values) (*Page, error) {
	var parsed searchResponse
	if err := c.get(ctx, endpoint, params, &parsed); err != nil {
		return nil, err
	}
	if err := statusError(parsed.Status, parsed.ErrorMessage); err != nil {
		return nil, err
	}
	return &Page{Results: parsed.Results, NextPageToken: parsed.NextPageToken}, nil
}

// Details fetches extended attributes for one place.
func (c *Client) Details(ctx context.Context, placeID string, fields []string) (*Details, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("key", c.key)
	params.Set("language", c.language)
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}

	var parsed detailsResponse
	if err := c.get(ctx, detailsEndpoint, params, &parsed); err != nil {
		return nil, fmt.Errorf("details %s: %w", placeID, err)
	}
	if err := statusError(parsed.Status, parsed.ErrorMessage); err != nil {
		return nil, fmt.Errorf("details %s: %w", placeID, err)
	}

	res := parsed.Result
	d := &Details{
		BusinessStatus: res.BusinessStatus,
		Website:        res.Website,
		Phone:          res.FormattedPhoneNumber,
		MapsURL:        res.URL,
		PriceLevel:     res.PriceLevel,
		UTCOffsetMin:   res.UTCOffset,
		CountryCode:    countryShortCode(res.AddressComponents),
		Reviews:        res.Reviews,
	}
	if res.OpeningHours != nil {
		d.OpeningHours = res.OpeningHours.WeekdayText
	}
	if res.EditorialSummary != nil {
		d.Summary = res.EditorialSummary.Overview
	}
	return d, nil
}

// CountryCode resolves a place's country short code through the details
// endpoint, memoised per place ID.
func (c *Client) CountryCode(ctx context.Context, placeID string) (string, error) {
	if code, ok := c.countryCache.Get(placeID); ok {
		return code, nil
	}
	d, err := c.Details(ctx, placeID, []string{"address_component"})
	if err != nil {
		return "", err
	}
	c.countryCache.Add(placeID, d.CountryCode)
	return d.CountryCode, nil
}

// MapsURL builds the canonical maps link for a place identifier.
func MapsURL(placeID string) string {
	return "https://www.google.com/maps/place/?q=place_id:" + placeID
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return ErrRateLimited{Status: "HTTP_429"}
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func countryShortCode(components []addressComponent) string {
	for _, comp := range components {
		for _, t := range comp.Types {
			if t == "country" {
				return comp.ShortName
			}
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, ", ")
}

func formatLatLng(ll LatLng) string {
	return strconv.FormatFloat(ll.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(ll.Lng, 'f', -1, 64)
}
