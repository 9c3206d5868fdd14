package utils

import (
	"fmt"
	"time"
)

// ParseTimeIn parses s as RFC3339 or, when s carries no offset, as one of the
// common local layouts interpreted in loc.
func ParseTimeIn(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	if loc == nil {
		loc = time.UTC
	}

	// Try standard RFC3339 format (ISO 8601)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("failed to parse time: %v", s)
}
