package models

import "time"

var periodLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParsePeriod parses an ISO-8601 date or timestamp string as used in
// report_period, published_at, and transaction_date fields. A value that
// parses under none of the accepted layouts returns ok=false; callers must
// exclude the row from date-dependent computations rather than substitute a
// default epoch.
func ParsePeriod(s string) (time.Time, bool) {
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
