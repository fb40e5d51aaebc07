package parse

import (
	"fmt"
	"strings"
	"time"
)

// Accepted layouts for time bounds in query strings, tried in order.
// Values without an offset are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TimeBound parses a start_date/end_date query value or an event_time. A
// bare date means midnight UTC of that day, so an end bound of "2023-09-15"
// excludes readings taken later on the 15th.
func TimeBound(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %q", raw)
}
