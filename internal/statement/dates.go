package statement

import (
	"regexp"
	"strings"
	"time"
)

var yearMonth = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// NormalizeDate turns a "YYYY-MM" period into the first-of-month display
// form "01/MM/YYYY". Any other value is returned trimmed and unchanged, so
// the function is idempotent.
func NormalizeDate(v string) string {
	v = strings.TrimSpace(v)
	m := yearMonth.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	month := m[2]
	if len(month) == 1 {
		month = "0" + month
	}
	return "01/" + month + "/" + m[1]
}

var displayLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"Jan 2006",
	"January 2006",
	"02 Jan 2006",
}

// parseDisplayDate parses a normalized display date. ok is false when no
// known layout matches.
func parseDisplayDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range displayLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateBefore orders display dates ascending with unparsable values first.
func dateBefore(a, b string) bool {
	ta, okA := parseDisplayDate(a)
	tb, okB := parseDisplayDate(b)
	switch {
	case !okA && !okB:
		return false
	case !okA:
		return true
	case !okB:
		return false
	}
	return ta.Before(tb)
}
