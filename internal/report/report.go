// Package report combines per-site Umami results into a single digest.
package report

import (
	"time"

	"github.com/pfrederiksen/umami-report/internal/period"
	"github.com/pfrederiksen/umami-report/internal/umami"
	"github.com/pfrederiksen/umami-report/internal/website"
)

// SiteResult is one configured site and what was fetched for it.
type SiteResult struct {
	Site  website.Site `json:"site"`
	Stats *umami.Stats `json:"stats,omitempty"`
	Err   error        `json:"-"`
}

// OK reports whether stats were fetched for the site.
func (r SiteResult) OK() bool {
	return r.Err == nil && r.Stats != nil
}

// Error returns the fetch error text, or "".
func (r SiteResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report is everything needed to render a digest.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Range       period.Range `json:"range"`
	Sites       []SiteResult `json:"sites"`
}

// New builds a report from fetch results, keeping their order.
func New(generatedAt time.Time, r period.Range, results []umami.Result) *Report {
	rep := &Report{
		GeneratedAt: generatedAt,
		Range:       r,
		Sites:       make([]SiteResult, 0, len(results)),
	}
	for _, res := range results {
		sr := SiteResult{Site: res.Site, Stats: res.Stats, Err: res.Err}
		if sr.Err == nil && sr.Stats == nil {
			sr.Stats = &umami.Stats{}
		}
		rep.Sites = append(rep.Sites, sr)
	}
	return rep
}

// Multi reports whether the digest covers more than one site and therefore
// gets a summary section.
func (r *Report) Multi() bool {
	return len(r.Sites) > 1
}

// Totals sums the stats of every site that was fetched successfully.
func (r *Report) Totals() umami.Stats {
	var total umami.Stats
	for _, s := range r.Sites {
		if s.OK() {
			total.Add(*s.Stats)
		}
	}
	return total
}

// Succeeded returns the number of sites with stats.
func (r *Report) Succeeded() int {
	n := 0
	for _, s := range r.Sites {
		if s.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of sites whose fetch failed.
func (r *Report) Failed() int {
	return len(r.Sites) - r.Succeeded()
}

// AllFailed reports whether there were sites and none succeeded.
func (r *Report) AllFailed() bool {
	return len(r.Sites) > 0 && r.Succeeded() == 0
}
