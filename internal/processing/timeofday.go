package processing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	rangeSeparator = regexp.MustCompile(`\s*[-–]\s*`)
	clockToken     = regexp.MustCompile(`(?i)^(\d{1,2})(?:[.:](\d{2}))?\s*(am|pm)?$`)
)

// NormalizeTime converts a time or time range to 24-hour "HH:MM" or
// "HH:MM - HH:MM". Segments that are not recognised are kept as written.
// An empty input yields "".
func NormalizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parts := rangeSeparator.Split(raw, -1)
	if len(parts) == 2 {
		return convertClock(parts[0]) + " - " + convertClock(parts[1])
	}
	return convertClock(raw)
}

func convertClock(token string) string {
	t := strings.TrimSpace(token)
	m := clockToken.FindStringSubmatch(t)
	if m == nil {
		return t
	}
	// A bare hour has no way to tell morning from evening.
	if m[2] == "" && m[3] == "" {
		return t
	}

	h, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if h != 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || minute > 59 {
		return t
	}
	return fmt.Sprintf("%02d:%02d", h, minute)
}

// FormatTime renders t as "HH:MM".
func FormatTime(t time.Time) string {
	return t.Format("15:04")
}

// FormatTimeRange renders "HH:MM - HH:MM", or only the start when end is zero.
func FormatTimeRange(start, end time.Time) string {
	if end.IsZero() {
		return FormatTime(start)
	}
	return FormatTime(start) + " - " + FormatTime(end)
}
