package normalize

import (
	"strconv"
	"strings"
	"time"

	"lapdcalls/internal/raw"
)

// dateLayouts are tried in order. Socrata floating timestamps come first;
// layouts without a zone are read as UTC.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
}

// ParseDate reads a timestamp from a raw value. Numbers and text matching no
// known layout yield false.
func ParseDate(v raw.Value) (time.Time, bool) {
	switch v.Kind() {
	case raw.KindTime:
		t, _ := v.Time()
		return t.UTC(), true
	case raw.KindString:
		s, _ := v.Text()
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// ParseHour reads the hour of day from a time-of-day value: "15:04:05",
// "15:04", military "1504" (numbers included), or a timestamp.
func ParseHour(v raw.Value) (int, bool) {
	if t, ok := v.Time(); ok {
		return t.UTC().Hour(), true
	}
	s, ok := v.Text()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), true
		}
	}
	if len(s) > 4 || !allDigits(s) {
		return 0, false
	}
	s = strings.Repeat("0", 4-len(s)) + s
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[2:])
	if h > 23 || m > 59 {
		return 0, false
	}
	return h, true
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
