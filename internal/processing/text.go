package processing

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	stripAll   = bluemonday.StrictPolicy()
)

// CleanText decodes HTML entities and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// StripHTML drops all markup and returns readable text.
func StripHTML(input string) string {
	if input == "" {
		return ""
	}
	// Line breaks become spaces before tags are removed so words do not merge.
	spaced := strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "</p>", " ", "</li>", " ").Replace(input)
	return CleanText(stripAll.Sanitize(spaced))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
