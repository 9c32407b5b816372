package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// CostFree is the normalised token for events with no charge.
const CostFree = "Free"

// prizeWindow is how many characters around a price match "prize" disqualifies it.
const prizeWindow = 20

var (
	pricePattern = regexp.MustCompile(`([£$€])\s?(\d[\d,]*(?:\.\d{1,2})?)`)
	prizePattern = regexp.MustCompile(`(?i)\bprizes?\b`)
	freePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfree\b`),
		regexp.MustCompile(`(?i)\bcomplimentary\b`),
		regexp.MustCompile(`(?i)\bno charge\b`),
		regexp.MustCompile(`(?i)\bno cost\b`),
	}
)

// ExtractCost finds a ticket price or a free-entry phrase in text.
// It returns "" when neither is present. A price next to the word "prize"
// is treated as prize money, and free-entry phrases are not consulted then.
func ExtractCost(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if loc := pricePattern.FindStringSubmatchIndex(text); loc != nil {
		if prizePattern.MatchString(around(text, loc[0], loc[1], prizeWindow)) {
			return ""
		}
		amount := strings.TrimRight(text[loc[4]:loc[5]], ",")
		return text[loc[2]:loc[3]] + amount
	}

	for _, re := range freePatterns {
		if re.MatchString(text) {
			return CostFree
		}
	}
	return ""
}

// around returns text[start:end] widened by n runes on each side.
func around(text string, start, end, n int) string {
	from := start
	for i := 0; i < n && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for i := 0; i < n && to < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return text[from:to]
}
