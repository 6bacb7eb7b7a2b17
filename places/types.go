package places

// Wire types for the Places and Geocoding JSON APIs, trimmed to the fields
// the collector consumes.

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location LatLng `json:"location"`
}

type openingHours struct {
	OpenNow     *bool    `json:"open_now,omitempty"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

// Result is one place summary from a text or nearby search.
type Result struct {
	Name             string        `json:"name"`
	FormattedAddress string        `json:"formatted_address"`
	Vicinity         string        `json:"vicinity"`
	PlaceID          string        `json:"place_id"`
	BusinessStatus   string        `json:"business_status"`
	Rating           float64       `json:"rating"`
	UserRatingsTotal int           `json:"user_ratings_total"`
	Types            []string      `json:"types"`
	Geometry         geometry      `json:"geometry"`
	OpeningHours     *openingHours `json:"opening_hours"`
}

// Address returns the best available address text: text search fills
// formatted_address, nearby search fills vicinity.
func (r *Result) Address() string {
	if r.FormattedAddress != "" {
		return r.FormattedAddress
	}
	return r.Vicinity
}

// Page is one page of search results plus the continuation token, when any.
type Page struct {
	Results       []Result
	NextPageToken string
}

type searchResponse struct {
	Results       []Result `json:"results"`
	Status        string   `json:"status"`
	ErrorMessage  string   `json:"error_message"`
	NextPageToken string   `json:"next_page_token"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geocodeResult struct {
	Geometry          geometry           `json:"geometry"`
	AddressComponents []addressComponent `json:"address_components"`
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
}

type detailsReview struct {
	AuthorName              string `json:"author_name"`
	Rating                  int    `json:"rating"`
	RelativeTimeDescription string `json:"relative_time_description"`
	Text                    string `json:"text"`
	Language                string `json:"language"`
}

type detailsResult struct {
	Name                 string             `json:"name"`
	PlaceID              string             `json:"place_id"`
	AddressComponents    []addressComponent `json:"address_components"`
	BusinessStatus       string             `json:"business_status"`
	Website              string             `json:"website"`
	FormattedPhoneNumber string             `json:"formatted_phone_number"`
	URL                  string             `json:"url"`
	PriceLevel           *int               `json:"price_level"`
	UTCOffset            *int               `json:"utc_offset"`
	OpeningHours         *openingHours      `json:"opening_hours"`
	EditorialSummary     *struct {
		Overview string `json:"overview"`
	} `json:"editorial_summary"`
	Reviews []detailsReview `json:"reviews"`
}

type detailsResponse struct {
	Result       detailsResult `json:"result"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
}

// Details is the subset of extended attributes the enrichment pass keeps.
type Details struct {
	BusinessStatus string
	Website        string
	Phone          string
	MapsURL        string
	PriceLevel     *int
	UTCOffsetMin   *int
	OpeningHours   []string
	Summary        string
	CountryCode    string
	Reviews        []detailsReview
}
