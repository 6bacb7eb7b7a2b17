package extract

import (
	"regexp"
	"strings"
)

// Token extraction runs over two alternating character classes: Latin
// alphanumeric runs with a little naming punctuation, and Hangul runs.
// Both bounded to 2-40 characters, the practical length of a venue name.
var (
	tokenRe  = regexp.MustCompile(`[A-Za-z0-9&.'’\- ]{2,40}|[가-힣][가-힣0-9&.'’\- ]{1,39}`)
	letterRe = regexp.MustCompile(`[가-힣A-Za-z]`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)

	// Korean narrative lines end in polite/declarative verb endings. Used to
	// reject prose when judging short lines as potential venue names.
	koSentenceRe = regexp.MustCompile(`(습니다|입니다|어요|아요|네요|해요|였다|었다|한다|이다|지요|죠)[.!?~\s]*$`)
	sentenceRe   = regexp.MustCompile(`[.!?]\s*$`)
)

const trimCutset = " \t-—·'’\"“”[]()"

// Category vocabulary too generic to ever be a place name.
var genericStopwords = map[string]struct{}{
	"맛집":         {},
	"식당":         {},
	"카페":         {},
	"레스토랑":       {},
	"술집":         {},
	"현지":         {},
	"restaurant": {},
	"cafe":       {},
	"bar":        {},
	"food":       {},
}

// Candidates scans plain text for POI-name candidates. A line is considered
// relevant when any hint matches it case-insensitively, or, with hints
// present, when it is short and does not read like a narrative sentence.
// With no hints at all every line is scanned; broader recall, more noise.
// Results are deduplicated case-insensitively in first-seen order and capped
// at topK.
func Candidates(text string, hints []string, topK int, lang string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lowerHints := make([]string, 0, len(hints))
	stop := make(map[string]struct{}, len(genericStopwords)+len(hints))
	for w := range genericStopwords {
		stop[w] = struct{}{}
	}
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		lowerHints = append(lowerHints, h)
		stop[h] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(lowerHints) > 0 && !relevantLine(line, lowerHints, lang) {
			continue
		}
		for _, raw := range tokenRe.FindAllString(line, -1) {
			name := strings.Trim(raw, trimCutset)
			runes := []rune(name)
			if len(runes) < 2 || len(runes) > 40 {
				continue
			}
			if digitsRe.MatchString(name) || !letterRe.MatchString(name) {
				continue
			}
			key := strings.ToLower(name)
			if _, generic := stop[key]; generic {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
			if topK > 0 && len(out) >= topK {
				return out
			}
		}
	}
	return out
}

func relevantLine(line string, lowerHints []string, lang string) bool {
	lower := strings.ToLower(line)
	for _, h := range lowerHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	// Secondary heuristic: a short non-sentence line with a letter in it is
	// often a standalone venue name or heading.
	runes := []rune(line)
	if len(runes) < 2 || len(runes) > 30 {
		return false
	}
	if !letterRe.MatchString(line) {
		return false
	}
	if lang == "kor" && koSentenceRe.MatchString(line) {
		return false
	}
	if sentenceRe.MatchString(line) {
		return false
	}
	return true
}
