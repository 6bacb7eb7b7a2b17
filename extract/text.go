package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Containers likely to hold the main post body, checked in order. The Naver
// selectors cover the mobile blog layouts; the rest are common elsewhere.
var contentSelectors = []string{
	".se-main-container",
	"#postViewArea",
	".post_ct",
	"article",
	"main",
	"#content",
}

// MainText strips a page down to its readable text: pick the densest
// main-content container, falling back to the whole body, with
// script/style/noscript removed in all cases. Output is one trimmed visible
// line per text block, newline joined.
func MainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	sel := doc.Find("body")
	best := sel
	bestLen := 0
	for _, selector := range contentSelectors {
		if s := doc.Find(selector).First(); s.Length() > 0 {
			if n := len(strings.TrimSpace(s.Text())); n > bestLen {
				best, bestLen = s, n
			}
		}
	}
	// A boilerplate-only match is worse than the raw page.
	if bestLen < 80 {
		best = sel
	}

	var lines []string
	for _, ln := range strings.Split(blockText(best), "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// blockText renders a selection as text with newlines at block boundaries,
// so the line-oriented candidate heuristics see one visual line at a time.
func blockText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			b.WriteString(node.Text())
			return
		}
		switch goquery.NodeName(node) {
		case "br", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section":
			b.WriteString(blockText(node))
			b.WriteString("\n")
		default:
			b.WriteString(blockText(node))
		}
	})
	return b.String()
}
