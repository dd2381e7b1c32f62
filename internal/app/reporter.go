package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/umami-report/internal/logger"
	"github.com/pfrederiksen/umami-report/internal/metrics"
	"github.com/pfrederiksen/umami-report/internal/notifier"
	"github.com/pfrederiksen/umami-report/internal/period"
	"github.com/pfrederiksen/umami-report/internal/report"
	"github.com/pfrederiksen/umami-report/internal/telegram"
	"github.com/pfrederiksen/umami-report/internal/umami"
	"github.com/pfrederiksen/umami-report/internal/website"
)

// ErrAllSitesFailed is returned after delivery when no site could be
// fetched. The digest is still sent so the failure is visible in the chat.
var ErrAllSitesFailed = errors.New("failed to fetch statistics for every website")

// StatsSource is the part of the Umami client the reporter needs.
type StatsSource interface {
	Authenticate(ctx context.Context, creds umami.Credentials) (umami.AuthMethod, error)
	Website(ctx context.Context, websiteID string) (*umami.Website, error)
	FetchAll(ctx context.Context, sites []website.Site, r period.Range, limit int) []umami.Result
}

// Options controls a single report run.
type Options struct {
	Sites        []website.Site
	Credentials  umami.Credentials
	StartAt      string
	EndAt        string
	Concurrency  int
	Title        string
	Location     *time.Location
	ResolveNames bool
	// PushgatewayURL receives the run's metrics when set.
	PushgatewayURL string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	AuthMethod umami.AuthMethod
	Report     *report.Report
	Totals     umami.Stats
	Message    string
	Delivered  bool
	Duration   time.Duration
}

// Reporter fetches statistics, renders the digest and delivers it.
type Reporter struct {
	source   StatsSource
	notifier notifier.Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger
	opts     Options
	runID    string
}

// NewReporter creates a reporter.
func NewReporter(source StatsSource, n notifier.Notifier, m *metrics.Metrics, log *logger.Logger, opts Options) *Reporter {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = telegram.DefaultLocation
	}
	return &Reporter{
		source:   source,
		notifier: n,
		metrics:  m,
		log:      log,
		opts:     opts,
	}
}

// Run executes the pipeline: authenticate, fetch every site, format the
// digest and deliver it. Sites that fail are reported in the digest and do
// not fail the run unless all of them fail, in which case the digest is
// still delivered and ErrAllSitesFailed is returned with the result.
func (r *Reporter) Run(ctx context.Context) (res *Result, err error) {
	started := r.opts.Now()
	r.runID = uuid.NewString()
	res = &Result{RunID: r.runID}

	defer func() {
		res.Duration = time.Since(started)
		r.finish(ctx, res, err)
	}()

	rng, err := period.Resolve(r.opts.StartAt, r.opts.EndAt, started, r.opts.Location)
	if err != nil {
		return res, fmt.Errorf("resolving report period: %w", err)
	}

	method, err := r.source.Authenticate(ctx, r.opts.Credentials)
	if err != nil {
		r.metrics.IncrCounter("umami.auth.failures")
		return res, fmt.Errorf("authenticating with umami: %w", err)
	}
	res.AuthMethod = method
	r.log.Info("Authenticated with Umami", r.fields(logger.Fields{"method": string(method)}))

	sites := r.opts.Sites
	if r.opts.ResolveNames {
		sites = r.resolveNames(ctx, sites)
	}
	for _, site := range sites {
		if site.Kind() == website.KindOther {
			r.log.Warn("Website ID is neither a UUID nor numeric", r.fields(logger.Fields{"website_id": site.ID}))
		}
	}

	r.log.Info("Fetching statistics", r.fields(logger.Fields{
		"sites":  len(sites),
		"period": rng.Describe(r.opts.Location),
		"start":  rng.Start.Format(time.RFC3339),
		"end":    rng.End.Format(time.RFC3339),
	}))

	fetchStart := time.Now()
	results := r.source.FetchAll(ctx, sites, rng, r.opts.Concurrency)
	r.metrics.RecordTiming("umami.fetch", time.Since(fetchStart))
	r.recordResults(results)

	rep := report.New(started, rng, results)
	res.Report = rep
	res.Totals = rep.Totals()

	r.metrics.SetGauge("sites.succeeded", float64(rep.Succeeded()))
	r.metrics.SetGauge("sites.failed", float64(rep.Failed()))
	r.metrics.SetGauge("pageviews", float64(res.Totals.Pageviews))
	r.metrics.SetGauge("visitors", float64(res.Totals.Visitors))
	r.metrics.SetGauge("visits", float64(res.Totals.Visits))

	res.Message = telegram.FormatDigest(rep, telegram.DigestOptions{
		Title:    r.opts.Title,
		Location: r.opts.Location,
	})

	if err := r.notifier.Notify(ctx, res.Message); err != nil {
		r.metrics.IncrCounter("notify.failures")
		return res, fmt.Errorf("delivering report: %w", err)
	}
	res.Delivered = true
	r.metrics.IncrCounter("notify.sent")
	r.log.Info("Report delivered", r.fields(logger.Fields{
		"succeeded": rep.Succeeded(),
		"failed":    rep.Failed(),
	}))

	if rep.AllFailed() {
		return res, ErrAllSitesFailed
	}
	return res, nil
}

// resolveNames replaces missing labels with the website name from Umami.
// Lookup failures keep the ID as the label.
func (r *Reporter) resolveNames(ctx context.Context, sites []website.Site) []website.Site {
	resolved := make([]website.Site, len(sites))
	copy(resolved, sites)

	for i, site := range resolved {
		if site.HasLabel() {
			continue
		}
		w, err := r.source.Website(ctx, site.ID)
		if err != nil {
			r.log.Warn("Could not resolve website name", r.fields(logger.Fields{
				"website_id": site.ID,
				"error":      err.Error(),
			}))
			continue
		}
		switch {
		case w.Name != "":
			resolved[i].Label = w.Name
		case w.Domain != "":
			resolved[i].Label = w.Domain
		}
	}
	return resolved
}

func (r *Reporter) recordResults(results []umami.Result) {
	for _, res := range results {
		r.metrics.IncrCounter("umami.stats.requests")
		r.metrics.RecordTiming("umami.stats.request", res.Duration)

		if !res.OK() {
			r.metrics.IncrCounter("umami.stats.failures")
			r.log.Warn("Failed to fetch statistics", r.fields(logger.Fields{
				"website":    res.Site.Label,
				"website_id": res.Site.ID,
				"error":      fmt.Sprint(res.Err),
			}))
			continue
		}

		r.log.Debug("Fetched statistics", r.fields(logger.Fields{
			"website":     res.Site.Label,
			"website_id":  res.Site.ID,
			"pageviews":   res.Stats.Pageviews,
			"visitors":    res.Stats.Visitors,
			"visits":      res.Stats.Visits,
			"keys":        res.Stats.Keys,
			"duration_ms": res.Duration.Milliseconds(),
		}))
	}
}

// finish records the run outcome and pushes metrics. A failed push is
// logged and never changes the run result.
func (r *Reporter) finish(ctx context.Context, res *Result, err error) {
	r.metrics.RecordTiming("run", res.Duration)
	if err != nil {
		r.metrics.SetGauge("run.success", 0)
	} else {
		r.metrics.SetGauge("run.success", 1)
	}

	if r.opts.PushgatewayURL == "" {
		return
	}
	if pushErr := r.metrics.Push(context.WithoutCancel(ctx), r.opts.PushgatewayURL, metrics.Namespace); pushErr != nil {
		r.log.Warn("Failed to push metrics", r.fields(logger.Fields{"error": pushErr.Error()}))
	}
}

func (r *Reporter) fields(f logger.Fields) logger.Fields {
	if f == nil {
		f = logger.Fields{}
	}
	f["run_id"] = r.runID
	return f
}
