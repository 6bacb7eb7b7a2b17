// Package naver implements the Naver blog-search API client.
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

const (
	searchEndpoint = "https://openapi.naver.com/v1/search/blog.json"

	// API-imposed limits: at most 30 items per page, start offset at most 100.
	maxDisplay = 30
	maxStart   = 100
)

var postURLRe = regexp.MustCompile(`https?://blog\.naver\.com/([^/]+)/(\d+)`)

// Item is a single blog-search hit.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	BloggerName string `json:"bloggername"`
	PostDate    string `json:"postdate"`
}

type searchResponse struct {
	Total int    `json:"total"`
	Items []Item `json:"items"`
}

// Client calls the blog-search API with header credentials.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	clientID     string
	clientSecret string
}

// NewClient builds a client. A nil httpClient falls back to a default with
// the given timeout.
func NewClient(clientID, clientSecret string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient:   httpClient,
		endpoint:     searchEndpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SearchPosts pages through blog-search results until target URLs have been
// collected, the offset ceiling is reached, or a page comes back empty.
// Returned URLs are mobile-canonical and in API relevance order. On an HTTP
// error mid-pagination the URLs gathered so far are returned alongside the
// error; partial results are still useful.
func (c *Client) SearchPosts(ctx context.Context, query string, target int) ([]string, error) {
	if target <= 0 {
		return nil, nil
	}

	var urls []string
	start := 1
	for len(urls) < target && start <= maxStart {
		display := maxDisplay
		if remaining := target - len(urls); remaining < display {
			display = remaining
		}

		items, err := c.searchPage(ctx, query, display, start)
		if err != nil {
			return urls, fmt.Errorf("blog search page at offset %d: %w", start, err)
		}
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			urls = append(urls, NormalizePostURL(it.Link))
		}
		start += len(items)
	}

	if len(urls) > target {
		urls = urls[:target]
	}
	return urls, nil
}

func (c *Client) searchPage(ctx context.Context, query string, display, start int) ([]Item, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("start", strconv.Itoa(start))
	params.Set("sort", "sim")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Items, nil
}

// NormalizePostURL rewrites a desktop blog post URL to its mobile-canonical
// form so the same logical post dedupes regardless of which URL form the
// search API returned. Anything else passes through unchanged, which also
// makes the rewrite idempotent.
func NormalizePostURL(raw string) string {
	m := postURLRe.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return fmt.Sprintf("https://m.blog.naver.com/%s/%s", m[1], m[2])
}
