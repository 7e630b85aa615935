package article

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISO parses the ISO-8601 shapes seen in feeds and page metadata.
// Values without an offset are taken as UTC.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeDate converts a date string to UTC ISO-8601. ISO-looking values that
// fail to parse are returned unchanged. Free-form values go through dateparse;
// the second result is false when nothing usable was found.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if isoDatePrefix.MatchString(s) {
		if t, ok := ParseISO(s); ok {
			return FormatTime(t), true
		}
		return s, true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return "", false
	}
	return FormatTime(t), true
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// DayOf returns the UTC calendar day of an ISO timestamp. A leading
// YYYY-MM-DD is used when the full value does not parse.
func DayOf(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := ParseISO(s); ok {
		return TruncateDay(t), true
	}
	if prefix := isoDatePrefix.FindString(s); prefix != "" {
		if t, err := time.ParseInLocation("2006-01-02", prefix, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
}
