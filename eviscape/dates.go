package eviscape

import (
	"fmt"
	"strings"
	"time"
)

// Dates look like "2009-06-18 19:39:25", optionally followed by fractional
// seconds and a "+HH:MM" offset. Fractional seconds need no layout element.
var dateLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// parseDate returns the zero time for an empty string. Dates without an
// offset are taken as UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("eviscape: unrecognized date %q", s)
}
