package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"blogplaces/models"
)

// utf8BOM keeps spreadsheet applications from mangling Hangul in the CSVs.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column order is declared here rather than union-scanned from records, so
// output shape stays predictable across runs.
var (
	baseHeader = []string{
		"candidate_name", "resolved_name", "formatted_address", "place_id",
		"rating", "user_ratings_total", "types", "resolved_country_code",
		"lat", "lng", "google_maps_url", "mode", "source_urls",
	}
	detailsHeader = []string{
		"business_status", "price_level", "phone", "website",
		"opening_weekday_text", "editorial_summary", "utc_offset_min",
		"distance_m", "popularity",
	}
	reviewsHeader = []string{
		"place_id", "author", "rating", "relative_time", "text", "language",
	}
)

// WritePlacesCSV writes the record set as UTF-8-with-BOM CSV. The details
// columns appear only when at least one record was enriched; un-enriched
// rows leave them empty.
func WritePlacesCSV(path string, places []*models.Place) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	withDetails := false
	for _, p := range places {
		if p.Details != nil {
			withDetails = true
			break
		}
	}

	header := baseHeader
	if withDetails {
		header = append(append([]string{}, baseHeader...), detailsHeader...)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range places {
		if err := w.Write(placeRow(p, withDetails)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func placeRow(p *models.Place, withDetails bool) []string {
	lat, lng := "", ""
	if p.Lat != nil {
		lat = strconv.FormatFloat(*p.Lat, 'f', -1, 64)
	}
	if p.Lng != nil {
		lng = strconv.FormatFloat(*p.Lng, 'f', -1, 64)
	}

	row := []string{
		p.CandidateName,
		p.Name,
		p.Address,
		p.PlaceID,
		strconv.FormatFloat(p.Rating, 'f', -1, 64),
		strconv.Itoa(p.Reviews),
		p.TypesJoined(),
		p.CountryCode,
		lat,
		lng,
		p.MapsURL,
		p.Mode,
		joinURLs(p.SourceURLs),
	}
	if !withDetails {
		return row
	}

	d := p.Details
	if d == nil {
		return append(row, make([]string, len(detailsHeader))...)
	}
	utcOffset := ""
	if d.UTCOffsetMin != nil {
		utcOffset = strconv.Itoa(*d.UTCOffsetMin)
	}
	distance := ""
	if d.DistanceM > 0 {
		distance = strconv.FormatFloat(d.DistanceM, 'f', 1, 64)
	}
	return append(row,
		d.BusinessStatus,
		d.PriceLevel,
		d.Phone,
		d.Website,
		d.OpeningHours,
		d.Summary,
		utcOffset,
		distance,
		strconv.FormatFloat(d.Popularity, 'f', 3, 64),
	)
}

func joinURLs(urls []string) string {
	return strings.Join(urls, " ")
}

// geoFeature and geoCollection follow the RFC 7946 shapes.
type geoGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   geoGeometry    `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

// WriteGeoJSON writes records with both coordinates present as Point
// features; geometry-less records are silently excluded here but still
// appear in the CSV.
func WriteGeoJSON(path string, places []*models.Place) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	fc := geoCollection{Type: "FeatureCollection", Features: []geoFeature{}}
	for _, p := range places {
		if !p.HasGeometry() {
			continue
		}
		fc.Features = append(fc.Features, geoFeature{
			Type: "Feature",
			Geometry: geoGeometry{
				Type:        "Point",
				Coordinates: [2]float64{*p.Lng, *p.Lat},
			},
			Properties: placeProperties(p),
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create geojson file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	return nil
}

func placeProperties(p *models.Place) map[string]any {
	props := map[string]any{
		"resolved_name":      p.Name,
		"formatted_address":  p.Address,
		"place_id":           p.PlaceID,
		"rating":             p.Rating,
		"user_ratings_total": p.Reviews,
		"google_maps_url":    p.MapsURL,
	}
	if p.CandidateName != "" {
		props["candidate_name"] = p.CandidateName
	}
	if len(p.Types) > 0 {
		props["types"] = p.TypesJoined()
	}
	if p.CountryCode != "" {
		props["resolved_country_code"] = p.CountryCode
	}
	if p.Mode != "" {
		props["mode"] = p.Mode
	}
	if len(p.SourceURLs) > 0 {
		props["source_urls"] = p.SourceURLs
	}
	if d := p.Details; d != nil {
		if d.BusinessStatus != "" {
			props["business_status"] = d.BusinessStatus
		}
		if d.PriceLevel != "" {
			props["price_level"] = d.PriceLevel
		}
		if d.Phone != "" {
			props["phone"] = d.Phone
		}
		if d.Website != "" {
			props["website"] = d.Website
		}
		if d.OpeningHours != "" {
			props["opening_weekday_text"] = d.OpeningHours
		}
		if d.Summary != "" {
			props["editorial_summary"] = d.Summary
		}
		if d.UTCOffsetMin != nil {
			props["utc_offset_min"] = *d.UTCOffsetMin
		}
		if d.DistanceM > 0 {
			props["distance_m"] = d.DistanceM
		}
		if d.Popularity > 0 {
			props["popularity"] = d.Popularity
		}
	}
	return props
}

// WriteReviewsCSV writes the flattened review snapshots.
func WriteReviewsCSV(path string, reviews []models.Review) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create reviews file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(reviewsHeader); err != nil {
		return fmt.Errorf("write reviews header: %w", err)
	}
	for _, rv := range reviews {
		row := []string{
			rv.PlaceID, rv.Author, strconv.Itoa(rv.Rating),
			rv.RelativeTime, rv.Text, rv.Language,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write review record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush reviews csv: %w", err)
	}
	return nil
}

// WriteURLLog records which crawled blog URLs contributed how many places.
func WriteURLLog(path string, entries []models.URLLogEntry) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create url log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"blog_url", "used_place_count"}); err != nil {
		return fmt.Errorf("write url log header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e.BlogURL, strconv.Itoa(e.PlaceCount)}); err != nil {
			return fmt.Errorf("write url log record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush url log: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
