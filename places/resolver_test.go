package places

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"blogplaces/models"
)

func newTestResolver(t *testing.T) (*Resolver, *httpmock.MockTransport) {
	t.Helper()
	client, transport := newMockedClient(t)
	r := NewResolver(client)
	r.sleep = func(time.Duration) {}
	r.settle = 0
	return r, transport
}

func TestFilter(t *testing.T) {
	openNow := true
	closedNow := false

	tests := []struct {
		name string
		cfg  func(*Resolver)
		res  Result
		want string
	}{
		{
			name: "passes with no constraints",
			cfg:  func(r *Resolver) { r.Area = "" },
			res:  Result{Name: "스시 타로"},
			want: "",
		},
		{
			name: "area token match",
			cfg:  func(r *Resolver) { r.Area = "시부야" },
			res:  Result{FormattedAddress: "일본 도쿄도 시부야구 1-2-3"},
			want: "",
		},
		{
			name: "area alias match on romanised address",
			cfg:  func(r *Resolver) { r.Area = "시부야" },
			res:  Result{FormattedAddress: "1-2-3 Jinnan, Shibuya City, Tokyo"},
			want: "",
		},
		{
			name: "area mismatch",
			cfg:  func(r *Resolver) { r.Area = "시부야" },
			res:  Result{FormattedAddress: "Namba, Osaka"},
			want: SkipArea,
		},
		{
			name: "strict excludes empty address",
			cfg:  func(r *Resolver) { r.Area = "시부야" },
			res:  Result{Name: "이름만 있는 곳"},
			want: SkipArea,
		},
		{
			name: "loose passes empty address",
			cfg: func(r *Resolver) {
				r.Area = "시부야"
				r.AreaFilter = "loose"
			},
			res:  Result{Name: "이름만 있는 곳"},
			want: "",
		},
		{
			name: "none disables area filtering",
			cfg: func(r *Resolver) {
				r.Area = "시부야"
				r.AreaFilter = "none"
			},
			res:  Result{FormattedAddress: "Namba, Osaka"},
			want: "",
		},
		{
			name: "include types required",
			cfg:  func(r *Resolver) { r.IncludeTypes = []string{"restaurant"} },
			res:  Result{Types: []string{"lodging"}},
			want: SkipTypeInclude,
		},
		{
			name: "exclude types rejected",
			cfg:  func(r *Resolver) { r.ExcludeTypes = []string{"lodging"} },
			res:  Result{Types: []string{"lodging", "point_of_interest"}},
			want: SkipTypeExclude,
		},
		{
			name: "min rating",
			cfg:  func(r *Resolver) { r.MinRating = 4.0 },
			res:  Result{Rating: 3.9},
			want: SkipRating,
		},
		{
			name: "min reviews",
			cfg:  func(r *Resolver) { r.MinReviews = 10 },
			res:  Result{Rating: 4.5, UserRatingsTotal: 3},
			want: SkipReviews,
		},
		{
			name: "closed permanently",
			cfg:  func(r *Resolver) { r.RequireOperational = true },
			res:  Result{BusinessStatus: "CLOSED_PERMANENTLY"},
			want: SkipClosed,
		},
		{
			name: "operational passes status check",
			cfg:  func(r *Resolver) { r.RequireOperational = true },
			res:  Result{BusinessStatus: "OPERATIONAL"},
			want: "",
		},
		{
			name: "open now required but closed",
			cfg:  func(r *Resolver) { r.OpenNowOnly = true },
			res:  Result{OpeningHours: &openingHours{OpenNow: &closedNow}},
			want: SkipNotOpen,
		},
		{
			name: "open now unknown counts as closed",
			cfg:  func(r *Resolver) { r.OpenNowOnly = true },
			res:  Result{},
			want: SkipNotOpen,
		},
		{
			name: "open now passes",
			cfg:  func(r *Resolver) { r.OpenNowOnly = true },
			res:  Result{OpeningHours: &openingHours{OpenNow: &openNow}},
			want: "",
		},
		{
			name: "area checked before quality",
			cfg: func(r *Resolver) {
				r.Area = "시부야"
				r.MinRating = 4.0
			},
			res:  Result{FormattedAddress: "Namba, Osaka", Rating: 3.0},
			want: SkipArea,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestResolver(t)
			tt.cfg(r)
			if got := r.filter(tt.res); got != tt.want {
				t.Fatalf("filter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveCandidate(t *testing.T) {
	r, transport := newTestResolver(t)
	r.Area = "시부야"
	r.Country = "일본"
	r.CountryCode = "JP"

	transport.RegisterResponder(http.MethodGet, textSearchEndpoint, jsonResponder(`{
		"status": "OK",
		"results": [{
			"name": "스시 타로", "place_id": "ChIJ123abc",
			"formatted_address": "1-2-3 Jinnan, Shibuya City, Tokyo",
			"rating": 4.4, "user_ratings_total": 80, "types": ["restaurant"],
			"geometry": {"location": {"lat": 35.66, "lng": 139.7}}
		}]
	}`))

	place, reason, err := r.ResolveCandidate(context.Background(), models.Candidate{
		Name:      "스시타로",
		SourceURL: "https://m.blog.naver.com/foo/1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reason != "" {
		t.Fatalf("unexpected skip reason %q", reason)
	}
	if place.CandidateName != "스시타로" || place.Name != "스시 타로" {
		t.Fatalf("names = %q / %q", place.CandidateName, place.Name)
	}
	if place.PlaceID != "ChIJ123abc" || place.CountryCode != "JP" {
		t.Fatalf("place = %+v", place)
	}
	if !place.HasGeometry() {
		t.Fatal("geometry missing")
	}
	if len(place.SourceURLs) != 1 || place.SourceURLs[0] != "https://m.blog.naver.com/foo/1" {
		t.Fatalf("source urls = %v", place.SourceURLs)
	}
}

func TestResolveCandidateNoResults(t *testing.T) {
	r, transport := newTestResolver(t)
	transport.RegisterResponder(http.MethodGet, textSearchEndpoint,
		jsonResponder(`{"status": "ZERO_RESULTS", "results": []}`))

	place, reason, err := r.ResolveCandidate(context.Background(), models.Candidate{Name: "없는가게"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if place != nil || reason != SkipNoResults {
		t.Fatalf("got place=%v reason=%q, want nil/%q", place, reason, SkipNoResults)
	}
}

func TestResolveCandidateCountryMismatch(t *testing.T) {
	r, transport := newTestResolver(t)
	r.VerifyCountry = true
	r.CountryCode = "JP"

	transport.RegisterResponder(http.MethodGet, textSearchEndpoint, jsonResponder(`{
		"status": "OK",
		"results": [{"name": "강남 스시", "place_id": "ChIJkr", "formatted_address": "서울 강남구"}]
	}`))
	transport.RegisterResponder(http.MethodGet, detailsEndpoint, jsonResponder(`{
		"status": "OK",
		"result": {"address_components": [{"short_name": "KR", "types": ["country"]}]}
	}`))

	_, reason, err := r.ResolveCandidate(context.Background(), models.Candidate{Name: "강남 스시"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reason != SkipCountry {
		t.Fatalf("reason = %q, want %q", reason, SkipCountry)
	}
}

func TestResolveCandidateCountryLookupFailureExcludes(t *testing.T) {
	r, transport := newTestResolver(t)
	r.VerifyCountry = true
	r.CountryCode = "JP"
	r.MaxRetries = 0

	transport.RegisterResponder(http.MethodGet, textSearchEndpoint, jsonResponder(`{
		"status": "OK",
		"results": [{"name": "스시 타로", "place_id": "ChIJerr", "formatted_address": "Shibuya"}]
	}`))
	transport.RegisterResponder(http.MethodGet, detailsEndpoint,
		httpmock.NewStringResponder(500, "boom"))

	_, reason, err := r.ResolveCandidate(context.Background(), models.Candidate{Name: "스시 타로"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reason != SkipCountry {
		t.Fatalf("reason = %q, want %q", reason, SkipCountry)
	}
}

func TestResolveCandidateCountryCheckedBeforeCategory(t *testing.T) {
	// A cross-border first result must be attributed to the country rule even
	// when it would also fail the category rules.
	r, transport := newTestResolver(t)
	r.VerifyCountry = true
	r.CountryCode = "JP"
	r.IncludeTypes = []string{"restaurant"}
	r.MinRating = 4.5

	transport.RegisterResponder(http.MethodGet, textSearchEndpoint, jsonResponder(`{
		"status": "OK",
		"results": [{
			"name": "서울 호텔", "place_id": "ChIJkr",
			"formatted_address": "Seoul", "rating": 3.0,
			"types": ["lodging"]
		}]
	}`))
	transport.RegisterResponder(http.MethodGet, detailsEndpoint, jsonResponder(`{
		"status": "OK",
		"result": {"address_components": [{"short_name": "KR", "types": ["country"]}]}
	}`))

	_, reason, err := r.ResolveCandidate(context.Background(), models.Candidate{Name: "서울 호텔"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reason != SkipCountry {
		t.Fatalf("reason = %q, want %q", reason, SkipCountry)
	}
}

func TestPaginateRetriesUnsettledToken(t *testing.T) {
	r, _ := newTestResolver(t)

	var settles int
	r.sleep = func(time.Duration) { settles++ }

	calls := 0
	search := func(token string) (*Page, error) {
		calls++
		switch {
		case token == "":
			return &Page{
				Results:       []Result{{Name: "A", PlaceID: "pa"}},
				NextPageToken: "tok",
			}, nil
		case calls == 2:
			// First presentation of the token: not settled yet.
			return nil, ErrInvalidRequest{Message: "token not ready"}
		default:
			return &Page{Results: []Result{{Name: "B", PlaceID: "pb"}}}, nil
		}
	}

	got, err := r.paginate(context.Background(), search, 3, 10, models.ModeText)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d places, want 2", len(got))
	}
	if calls != 3 {
		t.Fatalf("search called %d times, want 3 (page, failed token, retry)", calls)
	}
	if settles < 2 {
		t.Fatalf("expected a settle wait before the token and before the retry, got %d", settles)
	}
}

func TestPaginateStopsWithPartialAfterRetry(t *testing.T) {
	r, _ := newTestResolver(t)

	calls := 0
	search := func(token string) (*Page, error) {
		calls++
		if token == "" {
			return &Page{
				Results:       []Result{{Name: "A", PlaceID: "pa"}},
				NextPageToken: "tok",
			}, nil
		}
		return nil, ErrInvalidRequest{Message: "still not ready"}
	}

	got, err := r.paginate(context.Background(), search, 3, 10, models.ModeText)
	if err != nil {
		t.Fatalf("partial pagination should not error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d places, want the first page only", len(got))
	}
	if calls != 3 {
		t.Fatalf("search called %d times, want 3 (exactly one retry)", calls)
	}
}

func TestPaginateFirstPageErrorPropagates(t *testing.T) {
	r, _ := newTestResolver(t)
	search := func(string) (*Page, error) {
		return nil, ErrInvalidRequest{Message: "bad query"}
	}
	if _, err := r.paginate(context.Background(), search, 3, 10, models.ModeText); err == nil {
		t.Fatal("expected first-page error to propagate")
	}
}

func TestPaginateHonorsLimit(t *testing.T) {
	r, _ := newTestResolver(t)
	search := func(string) (*Page, error) {
		return &Page{
			Results: []Result{
				{Name: "A", PlaceID: "pa"},
				{Name: "B", PlaceID: "pb"},
				{Name: "C", PlaceID: "pc"},
			},
			NextPageToken: "tok",
		}, nil
	}
	got, err := r.paginate(context.Background(), search, 3, 2, models.ModeText)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d places, want limit 2", len(got))
	}
}

func TestSearchWithRetryBacksOffOnRateLimit(t *testing.T) {
	r, _ := newTestResolver(t)
	r.MaxRetries = 2
	r.RetryBackoff = time.Nanosecond
	r.RetryBackoffMax = time.Microsecond

	calls := 0
	page, err := r.searchWithRetry(context.Background(), func() (*Page, error) {
		calls++
		if calls < 3 {
			return nil, ErrRateLimited{Status: "OVER_QUERY_LIMIT"}
		}
		return &Page{}, nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if page == nil || calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestSearchWithRetryGivesUp(t *testing.T) {
	r, _ := newTestResolver(t)
	r.MaxRetries = 1
	r.RetryBackoff = time.Nanosecond

	calls := 0
	_, err := r.searchWithRetry(context.Background(), func() (*Page, error) {
		calls++
		return nil, ErrRateLimited{Status: "OVER_QUERY_LIMIT"}
	})
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate-limited", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want initial attempt plus one retry", calls)
	}
}

func TestBackoffCapped(t *testing.T) {
	r, _ := newTestResolver(t)
	r.RetryBackoff = time.Second
	r.RetryBackoffMax = 4 * time.Second

	for attempt := 1; attempt <= 10; attempt++ {
		d := r.backoff(attempt)
		// Cap plus at most 25% jitter.
		if d > 5*time.Second {
			t.Fatalf("backoff(%d) = %v exceeds cap with jitter", attempt, d)
		}
		if d < time.Second {
			t.Fatalf("backoff(%d) = %v below base", attempt, d)
		}
	}
}

func TestEnrichDetails(t *testing.T) {
	r, transport := newTestResolver(t)
	center := LatLng{Lat: 35.6595, Lng: 139.7005}
	r.Center = &center

	var requestedFields string
	respond := jsonResponder(`{
		"status": "OK",
		"result": {
			"business_status": "OPERATIONAL",
			"formatted_phone_number": "03-1234-5678",
			"website": "https://sushi-taro.example",
			"url": "https://maps.google.com/?cid=42",
			"price_level": 3,
			"utc_offset": 540,
			"opening_hours": {"weekday_text": ["Monday: 11:00–22:00", "Tuesday: 11:00–22:00"]},
			"editorial_summary": {"overview": "Counter sushi."},
			"reviews": [
				{"author_name": "a", "rating": 5, "text": "one", "language": "ko"},
				{"author_name": "b", "rating": 4, "text": "two", "language": "ko"},
				{"author_name": "c", "rating": 4, "text": "three", "language": "ko"},
				{"author_name": "d", "rating": 3, "text": "four", "language": "ko"},
				{"author_name": "e", "rating": 5, "text": "five", "language": "ko"},
				{"author_name": "f", "rating": 1, "text": "six", "language": "ko"}
			]
		}
	}`)
	transport.RegisterResponder(http.MethodGet, detailsEndpoint,
		func(req *http.Request) (*http.Response, error) {
			requestedFields = req.URL.Query().Get("fields")
			return respond(req)
		})

	lat, lng := 35.66, 139.7
	place := &models.Place{
		Name:    "스시 타로",
		PlaceID: "ChIJ123abc",
		Rating:  4.4,
		Reviews: 80,
		Lat:     &lat,
		Lng:     &lng,
	}

	reviews := r.EnrichDetails(context.Background(), []*models.Place{place})

	// The field list is part of the provider contract; an unknown name makes
	// the whole details request fail.
	wantFields := "name,place_id,business_status,website,formatted_phone_number," +
		"url,price_level,utc_offset,opening_hours/weekday_text,editorial_summary,reviews"
	if requestedFields != wantFields {
		t.Fatalf("fields = %q, want %q", requestedFields, wantFields)
	}

	if place.Details == nil {
		t.Fatal("details not attached")
	}
	if place.Details.PriceLevel != "3" || place.Details.Phone != "03-1234-5678" {
		t.Fatalf("details = %+v", place.Details)
	}
	if place.Details.DistanceM <= 0 {
		t.Fatalf("distance = %v, want positive", place.Details.DistanceM)
	}
	if place.MapsURL != "https://maps.google.com/?cid=42" {
		t.Fatalf("maps url not overridden: %q", place.MapsURL)
	}
	if len(reviews) != maxReviewsPerPlace {
		t.Fatalf("got %d reviews, want cap of %d", len(reviews), maxReviewsPerPlace)
	}
	if reviews[0].PlaceID != "ChIJ123abc" || reviews[0].Author != "a" {
		t.Fatalf("first review = %+v", reviews[0])
	}
}

func TestEnrichDetailsSkipsFailures(t *testing.T) {
	r, transport := newTestResolver(t)
	r.MaxRetries = 0
	transport.RegisterResponder(http.MethodGet, detailsEndpoint,
		httpmock.NewStringResponder(500, "boom"))

	place := &models.Place{Name: "스시 타로", PlaceID: "ChIJerr"}
	reviews := r.EnrichDetails(context.Background(), []*models.Place{place})
	if place.Details != nil {
		t.Fatal("details attached despite lookup failure")
	}
	if len(reviews) != 0 {
		t.Fatalf("got %d reviews, want none", len(reviews))
	}
}
