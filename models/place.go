// Package models defines the record types flowing through the collector.
package models

import (
	"math"
	"strings"
)

// Discovery modes supported by the collector.
const (
	ModeBlog   = "blog"   // Naver blog posts -> candidate names -> text search
	ModeText   = "text"   // Google text search only
	ModeNearby = "nearby" // Google nearby search over a grid of sub-centers
)

// SourceDocument is a fetched blog page reduced to plain text. It lives only
// long enough to extract candidates and is never persisted.
type SourceDocument struct {
	URL      string
	Text     string
	Language string // ISO 639-3 tag, empty when detection failed
}

// Candidate names a possible point of interest found in a source document.
type Candidate struct {
	Name      string
	SourceURL string
}

// Place is the canonical resolved record. Identity is the provider place ID,
// falling back to name@address when the provider did not return one.
type Place struct {
	CandidateName string   `json:"candidate_name,omitempty"`
	Name          string   `json:"resolved_name"`
	Address       string   `json:"formatted_address"`
	PlaceID       string   `json:"place_id"`
	Rating        float64  `json:"rating"`
	Reviews       int      `json:"user_ratings_total"`
	Types         []string `json:"types,omitempty"`
	CountryCode   string   `json:"resolved_country_code,omitempty"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
	MapsURL       string   `json:"google_maps_url"`
	Mode          string   `json:"mode,omitempty"`
	SourceURLs    []string `json:"source_urls,omitempty"`

	Details *PlaceDetails `json:"details,omitempty"`
}

// PlaceDetails carries the optional attributes added by the details
// enrichment pass. Adding details never changes a place's identity.
type PlaceDetails struct {
	BusinessStatus string  `json:"business_status,omitempty"`
	PriceLevel     string  `json:"price_level,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Website        string  `json:"website,omitempty"`
	OpeningHours   string  `json:"opening_weekday_text,omitempty"`
	Summary        string  `json:"editorial_summary,omitempty"`
	UTCOffsetMin   *int    `json:"utc_offset_min,omitempty"`
	DistanceM      float64 `json:"distance_m,omitempty"`
	Popularity     float64 `json:"popularity,omitempty"`
}

// Key returns the dedup identity for the place.
func (p *Place) Key() string {
	if p.PlaceID != "" {
		return p.PlaceID
	}
	return p.Name + "@" + p.Address
}

// HasGeometry reports whether both coordinates are present.
func (p *Place) HasGeometry() bool {
	return p.Lat != nil && p.Lng != nil
}

// AddSource appends a provenance URL unless it is already recorded.
func (p *Place) AddSource(url string) {
	if url == "" {
		return
	}
	for _, u := range p.SourceURLs {
		if u == url {
			return
		}
	}
	p.SourceURLs = append(p.SourceURLs, url)
}

// PopularityScore weighs the rating by review volume so a 4.5 with thousands
// of reviews outranks a 5.0 with three.
func (p *Place) PopularityScore() float64 {
	return p.Rating * math.Log1p(float64(p.Reviews))
}

// TypesJoined renders the tag set for tabular output.
func (p *Place) TypesJoined() string {
	return strings.Join(p.Types, ",")
}

// Review is one flattened review snapshot attached during enrichment.
type Review struct {
	PlaceID      string `json:"place_id"`
	Author       string `json:"author"`
	Rating       int    `json:"rating"`
	RelativeTime string `json:"relative_time"`
	Text         string `json:"text"`
	Language     string `json:"language"`
}

// URLLogEntry records how many places one crawled blog URL contributed.
type URLLogEntry struct {
	BlogURL    string
	PlaceCount int
}

// RunResult summarises one collector run for the caller.
type RunResult struct {
	Mode            string
	PostsFetched    int
	PagesExtracted  int
	Candidates      int
	Resolved        int
	SkippedByFilter map[string]int
	SkippedSeen     int
	Merged          int
	Written         int
	Reviews         int
	CSVPath         string
	GeoJSONPath     string
	ReviewsPath     string
	URLLogPath      string
	ItemErrors      int
}
