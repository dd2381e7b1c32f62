package umami

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/umami-report/internal/period"
	"github.com/pfrederiksen/umami-report/internal/website"
)

// DefaultConcurrency bounds parallel stats requests when no limit is given.
const DefaultConcurrency = 4

// Result is the outcome of fetching one site. Exactly one of Stats and Err
// is set.
type Result struct {
	Site     website.Site
	Stats    *Stats
	Err      error
	Duration time.Duration
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.Stats != nil
}

// FetchAll requests stats for every site concurrently, at most limit at a
// time. Results are returned in the order of sites. A failing site records
// its error and does not cancel the others.
func (c *Client) FetchAll(ctx context.Context, sites []website.Site, r period.Range, limit int) []Result {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, site := range sites {
		i, site := i, site
		g.Go(func() error {
			start := time.Now()
			stats, err := c.Stats(gctx, site.ID, r)
			results[i] = Result{
				Site:     site,
				Stats:    stats,
				Err:      err,
				Duration: time.Since(start),
			}
			return nil
		})
	}

	// Workers never return an error.
	_ = g.Wait()

	return results
}
