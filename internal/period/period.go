// Package period resolves the reporting window sent to the Umami stats API.
package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultWindow is used when either bound is left unset.
	DefaultWindow = 24 * time.Hour

	// secondsCutoff separates second timestamps from millisecond ones.
	// 10,000,000,000 seconds is in the year 2286.
	secondsCutoff = 10_000_000_000

	dateLayout   = "2006-01-02"
	rangeLayout  = "01/02 15:04"
	lastDayLabel = "Last 24 Hours"
	lastDaySlack = 6 * time.Minute // windows up to 24.1h still read as "last 24 hours"
)

// Range is a closed reporting window.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StartMillis returns the start as Unix milliseconds.
func (r Range) StartMillis() int64 {
	return r.Start.UnixMilli()
}

// EndMillis returns the end as Unix milliseconds.
func (r Range) EndMillis() int64 {
	return r.End.UnixMilli()
}

// Duration returns the length of the window.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Describe returns the period line shown in the digest: "Last 24 Hours" for a
// day-sized window, otherwise "MM/DD HH:MM - MM/DD HH:MM" in loc.
func (r Range) Describe(loc *time.Location) string {
	if r.Duration() <= DefaultWindow+lastDaySlack {
		return lastDayLabel
	}
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("%s - %s",
		r.Start.In(loc).Format(rangeLayout),
		r.End.In(loc).Format(rangeLayout))
}

// Resolve builds the window from the configured bounds. If either bound is
// empty the window is the DefaultWindow ending at now. Date bounds are
// interpreted in loc; a date end bound covers the whole day.
func Resolve(start, end string, now time.Time, loc *time.Location) (Range, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start == "" || end == "" {
		return Last(DefaultWindow, now), nil
	}

	s, err := ParseTimestamp(start, false, loc)
	if err != nil {
		return Range{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseTimestamp(end, true, loc)
	if err != nil {
		return Range{}, fmt.Errorf("end: %w", err)
	}
	if s.After(e) {
		return Range{}, fmt.Errorf("start %s is after end %s", s.Format(time.RFC3339), e.Format(time.RFC3339))
	}

	return Range{Start: s, End: e}, nil
}

// Last returns the window of length d ending at now, truncated to
// milliseconds.
func Last(d time.Duration, now time.Time) Range {
	end := now.Truncate(time.Millisecond)
	return Range{Start: end.Add(-d), End: end}
}

// ParseTimestamp converts a bound into a time. An all-digit value is a Unix
// timestamp in seconds (below 10,000,000,000) or milliseconds. A YYYY-MM-DD
// value is the start of that day in loc, or its last millisecond when
// endOfDay is set.
func ParseTimestamp(s string, endOfDay bool, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time parameter")
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
		if n < secondsCutoff {
			n *= 1000
		}
		return time.UnixMilli(n), nil
	}

	day, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse time parameter %q, use YYYY-MM-DD or a Unix timestamp", s)
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	}
	return day, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
