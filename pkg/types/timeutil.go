// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// timeLayouts are tried in order by ParseUTC. Timestamps without a zone
// are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// feedLayouts cover the date formats seen in RSS and Atom feeds.
var feedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
}

// ParseUTC parses an ISO-8601 timestamp and normalizes it to UTC. It
// returns false for empty or unparsable input.
func ParseUTC(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseFeedTime parses the timestamp formats used by RSS and Atom feeds.
func ParseFeedTime(s string) (time.Time, bool) {
	if t, ok := ParseUTC(s); ok {
		return t, true
	}
	s = strings.TrimSpace(s)
	for _, layout := range feedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatUTC renders t as RFC 3339 in UTC with second precision. The zero
// time renders as the empty string.
func FormatUTC(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// MonthKey returns the "YYYY-MM" month of t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
