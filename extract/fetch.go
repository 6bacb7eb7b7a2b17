// Package extract turns blog pages into plain text and POI name candidates.
package extract

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"blogplaces/models"

	"github.com/abadojack/whatlanggo"
	"github.com/gocolly/colly/v2"
)

// Fetcher downloads blog pages one at a time with a realistic client
// identifier. Blog hosts reject obviously bot-looking requests.
type Fetcher struct {
	collector *colly.Collector
}

// NewFetcher configures the underlying collector: custom user agent, bounded
// timeout, and a serial limit rule with the given inter-request delay.
func NewFetcher(userAgent string, timeout, delay time.Duration) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.IgnoreRobotsTxt(),
	)
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{collector: collector}, nil
}

// WithTransport swaps the HTTP transport, used by tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// FetchDocument downloads url and reduces it to a plain-text SourceDocument.
// The clone-per-visit pattern keeps handlers scoped to one fetch while
// sharing the collector's transport and limit rules.
func (f *Fetcher) FetchDocument(url string) (*models.SourceDocument, error) {
	c := f.collector.Clone()

	var body []byte
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("visit %s: %w", url, err)
	}
	c.Wait()
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}

	text, err := MainText(string(body))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	return &models.SourceDocument{
		URL:      url,
		Text:     text,
		Language: detectLanguage(text),
	}, nil
}

func detectLanguage(text string) string {
	sample := []rune(text)
	if len(sample) == 0 {
		return ""
	}
	if len(sample) > 500 {
		sample = sample[:500]
	}
	info := whatlanggo.Detect(string(sample))
	return info.Lang.Iso6393()
}
