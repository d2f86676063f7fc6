package deadline

import (
	"regexp"
	"strings"
	"time"

	"uniadmit-backend/lib/timezone"
)

// ordered by priority, first parse wins
var layouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02 Jan 2006",
}

// Parse attempts to interpret a free-text deadline string. The false
// return means the string matched none of the known formats, which is
// not an error condition: callers treat the deadline as unknown.
func Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, raw, timezone.Location)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize converts a deadline string in any known format to ISO
// YYYY-MM-DD.
func Normalize(raw string) (string, bool) {
	t, ok := Parse(raw)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// IsOpen reports whether admissions are still open at the given
// instant. A deadline exactly equal to now counts as closed.
func IsOpen(deadline, now time.Time) bool {
	return deadline.After(now)
}

// Earliest picks the binding deadline out of a set of milestone dates
// found on a page. Detail pages tend to list several dates (test date,
// merit list, fee submission); the nearest one is the application
// deadline.
func Earliest(dates []time.Time) (time.Time, bool) {
	if len(dates) == 0 {
		return time.Time{}, false
	}
	min := dates[0]
	for _, d := range dates[1:] {
		if d.Before(min) {
			min = d
		}
	}
	return min, true
}

var datePattern = regexp.MustCompile(`\b\d{2}-\d{2}-\d{4}\b`)

// FindDates scans free text for DD-MM-YYYY dates, returning the
// distinct parseable ones.
func FindDates(text string) []time.Time {
	seen := map[string]bool{}
	var out []time.Time
	for _, m := range datePattern.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		t, ok := Parse(m)
		if ok {
			out = append(out, t)
		}
	}
	return out
}
