package server

import (
	"strings"
	"time"
)

const queryDateLayout = "2006-01-02"

// parseOptionalDate parses a yyyy-mm-dd query value. endOfDay shifts the
// result to the last instant of that day so "to" filters are inclusive.
func parseOptionalDate(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	parsed, err := time.ParseInLocation(queryDateLayout, value, time.UTC)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

func parseOptionalBool(value string) *bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	default:
		return nil
	}
}
