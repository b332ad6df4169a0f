package model

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the layout used for date-only values in every table.
const DateFormat = "2006-01-02"

var dateLayouts = []string{
	DateFormat,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ParseDate parses a balance or posting date. Date-only values and
// timestamps are both accepted; values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FormatDate renders t as a plain date when it falls on midnight UTC and as
// an RFC 3339 timestamp otherwise, so parsed values round-trip.
func FormatDate(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(DateFormat)
	}
	return t.Format(time.RFC3339Nano)
}
