package places

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"blogplaces/models"
)

// Skip reasons reported by the resolution filters, in evaluation order.
const (
	SkipNoResults   = "no_results"
	SkipArea        = "area"
	SkipCountry     = "country"
	SkipTypeInclude = "type_include"
	SkipTypeExclude = "type_exclude"
	SkipRating      = "rating"
	SkipReviews     = "reviews"
	SkipClosed      = "closed"
	SkipNotOpen     = "not_open"
)

// tokenSettleDelay is how long a continuation token needs before it becomes
// valid. Presenting it earlier yields INVALID_REQUEST.
const tokenSettleDelay = 2 * time.Second

const maxReviewsPerPlace = 5

// DefaultAreaAliases maps native-language city and ward names to the
// romanised form that shows up in formatted addresses. Coverage is
// incomplete by construction; extend the resolver's AreaAliases field per
// deployment instead of growing this table.
var DefaultAreaAliases = map[string]string{
	"도쿄":  "tokyo",
	"시부야": "shibuya",
	"신주쿠": "shinjuku",
	"오사카": "osaka",
	"교토":  "kyoto",
	"삿포로": "sapporo",
	"후쿠오카": "fukuoka",
	"세부":  "cebu",
	"막탄":  "mactan",
	"방콕":  "bangkok",
}

// Resolver turns candidate names and raw searches into canonical Place
// records under geographic, categorical, and quality constraints.
type Resolver struct {
	client *Client

	Area        string
	Country     string
	CountryCode string

	// AreaFilter is strict, loose, or none. Loose gives records without any
	// address text the benefit of the doubt; strict excludes them.
	AreaFilter  string
	AreaAliases map[string]string

	// VerifyCountry enables the details-based country check. A lookup
	// failure counts as a mismatch; conservative, may under-collect during
	// transient provider errors.
	VerifyCountry bool

	IncludeTypes       []string
	ExcludeTypes       []string
	MinRating          float64
	MinReviews         int
	OpenNowOnly        bool
	RequireOperational bool

	Center  *LatLng
	RadiusM int

	Delay           time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	// Overridable in tests so pacing and token settling do not slow them.
	sleep  func(time.Duration)
	settle time.Duration
}

// NewResolver builds a resolver around client with the default alias lexicon.
func NewResolver(client *Client) *Resolver {
	return &Resolver{
		client:          client,
		AreaFilter:      "strict",
		AreaAliases:     DefaultAreaAliases,
		MaxRetries:      3,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 8 * time.Second,
		sleep:           time.Sleep,
		settle:          tokenSettleDelay,
	}
}

// ResolveCandidate looks one candidate name up against the text-search
// endpoint and normalises the top match. The skip reason is non-empty when a
// filter rejected the result. The configured inter-call delay is applied
// after every attempt, pass or fail.
func (r *Resolver) ResolveCandidate(ctx context.Context, cand models.Candidate) (*models.Place, string, error) {
	defer r.pause()

	query := strings.TrimSpace(strings.Join(nonEmpty(cand.Name, r.Area, r.Country), " "))
	page, err := r.searchWithRetry(ctx, func() (*Page, error) {
		return r.client.TextSearch(ctx, query, r.Center, r.RadiusM, "")
	})
	if err != nil {
		return nil, "", err
	}
	if len(page.Results) == 0 {
		return nil, SkipNoResults, nil
	}

	// The provider's relevance order is trusted: first result wins. The
	// rejection chain short-circuits in order: area, country, then the
	// category and quality rules.
	top := page.Results[0]
	if !r.areaPass(top.Address()) {
		return nil, SkipArea, nil
	}
	if r.VerifyCountry && !r.countryPass(ctx, top.PlaceID) {
		return nil, SkipCountry, nil
	}
	if reason := r.qualityFilter(top); reason != "" {
		return nil, reason, nil
	}

	place := r.newPlace(top, models.ModeBlog)
	place.CandidateName = cand.Name
	place.CountryCode = r.CountryCode
	place.AddSource(cand.SourceURL)
	return place, "", nil
}

// CollectText gathers up to limit filtered places from a multi-page text
// search. A fresh continuation token needs its settle delay before use; an
// INVALID_REQUEST right after presenting one gets a single wait-and-retry
// before pagination is treated as exhausted.
func (r *Resolver) CollectText(ctx context.Context, query string, pages, limit int) ([]*models.Place, error) {
	search := func(token string) (*Page, error) {
		return r.searchWithRetry(ctx, func() (*Page, error) {
			return r.client.TextSearch(ctx, query, r.Center, r.RadiusM, token)
		})
	}
	return r.paginate(ctx, search, pages, limit, models.ModeText)
}

// CollectNearby tiles the requested radius into a lattice and issues an
// independent nearby search per lattice point per include type.
func (r *Resolver) CollectNearby(ctx context.Context, center LatLng, radiusM, steps, limit int) ([]*models.Place, error) {
	types := r.IncludeTypes
	if len(types) == 0 {
		types = []string{"restaurant"}
	}
	cellRadius := CellRadiusM(radiusM, steps)

	var out []*models.Place
	for _, point := range Grid(center, radiusM, steps) {
		for _, placeType := range types {
			search := func(token string) (*Page, error) {
				return r.searchWithRetry(ctx, func() (*Page, error) {
					return r.client.NearbySearch(ctx, point, cellRadius, placeType, token)
				})
			}
			got, err := r.paginate(ctx, search, 3, limit-len(out), models.ModeNearby)
			if err != nil {
				return append(out, got...), err
			}
			out = append(out, got...)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

type searchFunc func(pageToken string) (*Page, error)

func (r *Resolver) paginate(ctx context.Context, search searchFunc, pages, limit int, mode string) ([]*models.Place, error) {
	if pages < 1 {
		pages = 1
	}
	if limit <= 0 {
		return nil, nil
	}

	var out []*models.Place
	token := ""
	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if token != "" {
			r.sleep(r.settle)
		}

		result, err := search(token)
		if err != nil && token != "" && IsInvalidRequest(err) {
			// Token not settled yet: one more wait, one more try.
			r.sleep(r.settle)
			result, err = search(token)
		}
		if err != nil {
			if token != "" {
				slog.Warn("pagination stopped", slog.Any("error", err))
				return out, nil
			}
			return out, err
		}

		for _, res := range result.Results {
			if reason := r.filter(res); reason != "" {
				continue
			}
			out = append(out, r.newPlace(res, mode))
			if len(out) >= limit {
				return out, nil
			}
		}

		token = result.NextPageToken
		if token == "" {
			break
		}
		r.pause()
	}
	return out, nil
}

// filter applies the ordered rejection rules, returning the first failing
// filter's reason or "" on pass. The country rule does not apply to the
// search modes, so it is absent here.
func (r *Resolver) filter(res Result) string {
	if !r.areaPass(res.Address()) {
		return SkipArea
	}
	return r.qualityFilter(res)
}

func (r *Resolver) qualityFilter(res Result) string {
	if len(r.IncludeTypes) > 0 && !intersects(res.Types, r.IncludeTypes) {
		return SkipTypeInclude
	}
	if len(r.ExcludeTypes) > 0 && intersects(res.Types, r.ExcludeTypes) {
		return SkipTypeExclude
	}
	if res.Rating < r.MinRating {
		return SkipRating
	}
	if res.UserRatingsTotal < r.MinReviews {
		return SkipReviews
	}
	if r.RequireOperational && res.BusinessStatus != "" && res.BusinessStatus != "OPERATIONAL" {
		return SkipClosed
	}
	if r.OpenNowOnly {
		if res.OpeningHours == nil || res.OpeningHours.OpenNow == nil || !*res.OpeningHours.OpenNow {
			return SkipNotOpen
		}
	}
	return ""
}

func (r *Resolver) areaPass(addr string) bool {
	if r.AreaFilter == "none" || r.Area == "" {
		return true
	}
	if addr == "" {
		return r.AreaFilter == "loose"
	}
	low := strings.ToLower(addr)
	for _, tok := range strings.Fields(r.Area) {
		if strings.Contains(low, strings.ToLower(tok)) {
			return true
		}
		if alias, ok := r.AreaAliases[tok]; ok && alias != "" && strings.Contains(low, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

func (r *Resolver) countryPass(ctx context.Context, placeID string) bool {
	code, err := r.client.CountryCode(ctx, placeID)
	if err != nil {
		slog.Debug("country lookup failed, excluding place",
			slog.String("place_id", placeID), slog.Any("error", err))
		return false
	}
	return code != "" && code == r.CountryCode
}

// EnrichDetails runs the optional details pass over ps, attaching extended
// attributes in place and returning the flattened review snapshots. A
// failure on one place is logged and skipped.
func (r *Resolver) EnrichDetails(ctx context.Context, ps []*models.Place) []models.Review {
	fields := []string{
		"name", "place_id", "business_status", "website",
		"formatted_phone_number", "url", "price_level", "utc_offset",
		"opening_hours/weekday_text", "editorial_summary", "reviews",
	}

	var reviews []models.Review
	for _, p := range ps {
		if p.PlaceID == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return reviews
		}

		d, err := r.client.Details(ctx, p.PlaceID, fields)
		r.pause()
		if err != nil {
			slog.Warn("details enrichment failed",
				slog.String("place_id", p.PlaceID), slog.Any("error", err))
			continue
		}

		det := &models.PlaceDetails{
			BusinessStatus: d.BusinessStatus,
			Phone:          d.Phone,
			Website:        d.Website,
			OpeningHours:   strings.Join(d.OpeningHours, "; "),
			Summary:        d.Summary,
			UTCOffsetMin:   d.UTCOffsetMin,
			Popularity:     p.PopularityScore(),
		}
		if d.PriceLevel != nil {
			det.PriceLevel = strconv.Itoa(*d.PriceLevel)
		}
		if r.Center != nil && p.HasGeometry() {
			det.DistanceM = DistanceM(*r.Center, LatLng{Lat: *p.Lat, Lng: *p.Lng})
		}
		if d.MapsURL != "" {
			p.MapsURL = d.MapsURL
		}
		p.Details = det

		for i, rv := range d.Reviews {
			if i >= maxReviewsPerPlace {
				break
			}
			reviews = append(reviews, models.Review{
				PlaceID:      p.PlaceID,
				Author:       rv.AuthorName,
				Rating:       rv.Rating,
				RelativeTime: rv.RelativeTimeDescription,
				Text:         rv.Text,
				Language:     rv.Language,
			})
		}
	}
	return reviews
}

// searchWithRetry retries quota-exhaustion errors with capped exponential
// backoff plus jitter, then gives up so one hot candidate cannot stall the
// whole run.
func (r *Resolver) searchWithRetry(ctx context.Context, fn func() (*Page, error)) (*Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		page, err := fn()
		if err == nil {
			return page, nil
		}
		if !IsRateLimited(err) || attempt >= r.MaxRetries {
			return nil, err
		}
		lastErr = err

		delay := r.backoff(attempt + 1)
		slog.Debug("rate limited, backing off",
			slog.Duration("delay", delay), slog.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(delay):
		}
	}
}

func (r *Resolver) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := r.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := r.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	// Up to 25% jitter keeps concurrent clients from retrying in lockstep.
	return delay + time.Duration(rand.Int63n(int64(delay)/4+1))
}

func (r *Resolver) newPlace(res Result, mode string) *models.Place {
	p := &models.Place{
		Name:    res.Name,
		Address: res.Address(),
		PlaceID: res.PlaceID,
		Rating:  res.Rating,
		Reviews: res.UserRatingsTotal,
		Types:   res.Types,
		MapsURL: MapsURL(res.PlaceID),
		Mode:    mode,
	}
	if res.Geometry.Location.Lat != 0 || res.Geometry.Location.Lng != 0 {
		lat, lng := res.Geometry.Location.Lat, res.Geometry.Location.Lng
		p.Lat, p.Lng = &lat, &lng
	}
	return p
}

func (r *Resolver) pause() {
	if r.Delay > 0 {
		r.sleep(r.Delay)
	}
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
