package umami

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
)

// Field names Umami releases have used for page views, in lookup order.
var (
	pageviewFields           = []string{"pageviews", "pageViews", "views", "page_views", "page_views_count"}
	comparisonPageviewFields = []string{"pageviews", "pageViews", "views"}
)

// Stats are the aggregate metrics for one website over a window.
type Stats struct {
	Pageviews int64 `json:"pageviews"`
	Visitors  int64 `json:"visitors"`
	Visits    int64 `json:"visits"`
	Bounces   int64 `json:"bounces"`
	// TotalTime is the summed visit duration in seconds.
	TotalTime int64 `json:"totaltime"`

	// Keys lists the top-level fields of the response, for diagnostics.
	Keys []string `json:"-"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Pageviews += o.Pageviews
	s.Visitors += o.Visitors
	s.Visits += o.Visits
	s.Bounces += o.Bounces
	s.TotalTime += o.TotalTime
}

// BounceRate returns bounces as a percentage of visits. ok is false when
// there were no visits.
func (s Stats) BounceRate() (rate float64, ok bool) {
	if s.Visits <= 0 {
		return 0, false
	}
	return float64(s.Bounces) / float64(s.Visits) * 100, true
}

// AvgVisit returns the mean visit duration truncated to whole seconds. ok is
// false unless both total time and visits are positive.
func (s Stats) AvgVisit() (d time.Duration, ok bool) {
	if s.Visits <= 0 || s.TotalTime <= 0 {
		return 0, false
	}
	return time.Duration(s.TotalTime/s.Visits) * time.Second, true
}

type rawValue struct {
	data []byte
	typ  jsonparser.ValueType
}

// ParseStats reads a stats response. The body may be a single object or an
// array of objects, which are merged with later keys winning. Metric values
// may be numbers, numeric strings or {"value": n} objects; anything else
// counts as zero.
func ParseStats(body []byte) (*Stats, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	value, typ, _, err := jsonparser.Get(body)
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	fields := make(map[string]rawValue)
	switch typ {
	case jsonparser.Object:
		if err := collectFields(value, fields); err != nil {
			return nil, err
		}
	case jsonparser.Array:
		var itemErr error
		_, err := jsonparser.ArrayEach(value, func(item []byte, t jsonparser.ValueType, _ int, _ error) {
			if t != jsonparser.Object || itemErr != nil {
				return
			}
			itemErr = collectFields(item, fields)
		})
		if err != nil {
			return nil, fmt.Errorf("parsing response array: %w", err)
		}
		if itemErr != nil {
			return nil, itemErr
		}
	default:
		return nil, fmt.Errorf("unexpected API response format: %s", typ)
	}

	stats := &Stats{
		Pageviews: firstMetric(fields, pageviewFields),
		Visitors:  metric(fields["visitors"]),
		Visits:    metric(fields["visits"]),
		Bounces:   metric(fields["bounces"]),
		TotalTime: metric(fields["totaltime"]),
	}

	if stats.Pageviews == 0 {
		if cmp, ok := fields["comparison"]; ok && cmp.typ == jsonparser.Object {
			nested := make(map[string]rawValue)
			if err := collectFields(cmp.data, nested); err == nil {
				stats.Pageviews = firstMetric(nested, comparisonPageviewFields)
			}
		}
	}

	stats.Keys = make([]string, 0, len(fields))
	for k := range fields {
		stats.Keys = append(stats.Keys, k)
	}
	sort.Strings(stats.Keys)

	return stats, nil
}

func collectFields(obj []byte, into map[string]rawValue) error {
	err := jsonparser.ObjectEach(obj, func(key, value []byte, t jsonparser.ValueType, _ int) error {
		into[string(key)] = rawValue{data: value, typ: t}
		return nil
	})
	if err != nil {
		return fmt.Errorf("parsing response object: %w", err)
	}
	return nil
}

// firstMetric returns the first field in names that holds a usable value.
// A present zero counts as usable.
func firstMetric(fields map[string]rawValue, names []string) int64 {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			if n, ok := number(v); ok {
				return n
			}
		}
	}
	return 0
}

func metric(v rawValue) int64 {
	n, _ := number(v)
	return n
}

func number(v rawValue) (int64, bool) {
	switch v.typ {
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(v.data)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case jsonparser.String:
		n, err := strconv.ParseInt(string(v.data), 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	case jsonparser.Object:
		inner, t, _, err := jsonparser.Get(v.data, "value")
		if err != nil || t == jsonparser.Object {
			return 0, false
		}
		return number(rawValue{data: inner, typ: t})
	}
	return 0, false
}
