package processing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the calendar-day representation used in identity hashes.
const DayLayout = "2006-01-02"

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)(\d+)(st|nd|rd|th)\b`)
	dayMonthYear  = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]+)\s+(\d{4})`)
	monthDayYear  = regexp.MustCompile(`([A-Za-z]+)\s+(\d{1,2}),?\s+(\d{4})`)
	ddmmyyyy      = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DayLayout,
}

// ParseDay truncates a date-like string to its calendar day (UTC midnight).
// ISO forms keep the written day regardless of offset, matching a plain
// split on "T". It reports false when no day can be read.
func ParseDay(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if len(raw) >= len(DayLayout) {
		if d, err := time.Parse(DayLayout, raw[:len(DayLayout)]); err == nil {
			rest := raw[len(DayLayout):]
			if rest == "" || rest[0] == 'T' || rest[0] == ' ' {
				return d, true
			}
		}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return truncateDay(ts), true
		}
	}
	if m := ddmmyyyy.FindStringSubmatch(raw); m != nil {
		return buildDay(m[3], m[2], m[1])
	}
	if d, ok := ParseDayMonthYear(raw); ok {
		return d, true
	}
	return time.Time{}, false
}

// ParseDayMonthYear reads "25 February 2026", "Thursday 16th April 2026"
// or "Feb 16, 2026".
func ParseDayMonthYear(text string) (time.Time, bool) {
	cleaned := ordinalSuffix.ReplaceAllString(strings.TrimSpace(text), "$1")
	if m := dayMonthYear.FindStringSubmatch(cleaned); m != nil {
		if month, ok := lookupMonth(m[2]); ok {
			return buildDay(m[3], strconv.Itoa(int(month)), m[1])
		}
	}
	if m := monthDayYear.FindStringSubmatch(cleaned); m != nil {
		if month, ok := lookupMonth(m[1]); ok {
			return buildDay(m[3], strconv.Itoa(int(month)), m[2])
		}
	}
	return time.Time{}, false
}

// DayKey formats a day as "YYYY-MM-DD".
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	m, ok := months[name[:3]]
	return m, ok
}

func buildDay(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func truncateDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
