package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/umami-report/internal/logger"
	"github.com/pfrederiksen/umami-report/internal/metrics"
	"github.com/pfrederiksen/umami-report/internal/period"
	"github.com/pfrederiksen/umami-report/internal/umami"
	"github.com/pfrederiksen/umami-report/internal/website"
)

var fixedNow = time.Date(2024, 5, 10, 1, 30, 0, 0, time.UTC)

type fakeSource struct {
	authErr  error
	stats    map[string]*umami.Stats
	errs     map[string]error
	names    map[string]*umami.Website
	gotRange period.Range
	gotSites []website.Site
	gotLimit int
}

func (f *fakeSource) Authenticate(_ context.Context, creds umami.Credentials) (umami.AuthMethod, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return creds.Method(), nil
}

func (f *fakeSource) Website(_ context.Context, id string) (*umami.Website, error) {
	w, ok := f.names[id]
	if !ok {
		return nil, &umami.APIError{Op: "fetch Umami website", StatusCode: http.StatusNotFound, Detail: "not found"}
	}
	return w, nil
}

func (f *fakeSource) FetchAll(_ context.Context, sites []website.Site, r period.Range, limit int) []umami.Result {
	f.gotRange = r
	f.gotSites = sites
	f.gotLimit = limit

	results := make([]umami.Result, len(sites))
	for i, site := range sites {
		results[i] = umami.Result{Site: site, Stats: f.stats[site.ID], Err: f.errs[site.ID]}
	}
	return results
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func newTestReporter(src StatsSource, n *recordingNotifier, opts Options) (*Reporter, *metrics.Metrics, *bytes.Buffer) {
	var logs bytes.Buffer
	m := metrics.New()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.Credentials == (umami.Credentials{}) {
		opts.Credentials = umami.Credentials{Username: "admin", Password: "hunter2"}
	}
	return NewReporter(src, n, m, logger.New(logger.LevelDebug, logger.FormatJSON, &logs), opts), m, &logs
}

func TestRun_PartialFailure(t *testing.T) {
	src := &fakeSource{
		stats: map[string]*umami.Stats{
			"a": {Pageviews: 1200, Visitors: 300, Visits: 400, Bounces: 100, TotalTime: 8000},
		},
		errs: map[string]error{"b": errors.New("HTTP 500")},
	}
	n := &recordingNotifier{}
	r, m, logs := newTestReporter(src, n, Options{
		Sites:       []website.Site{{ID: "a", Label: "Blog"}, {ID: "b", Label: "Docs"}},
		Concurrency: 2,
		Location:    time.UTC,
	})

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Delivered)
	assert.Equal(t, umami.AuthPassword, res.AuthMethod)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, int64(1200), res.Totals.Pageviews)
	assert.Equal(t, 1, res.Report.Succeeded())
	assert.Equal(t, 1, res.Report.Failed())
	assert.Equal(t, 2, src.gotLimit)
	assert.Equal(t, period.Last(24*time.Hour, fixedNow), src.gotRange)

	require.Len(t, n.messages, 1)
	assert.Equal(t, res.Message, n.messages[0])
	assert.Contains(t, res.Message, "⏰ 2024-05-10 01:30:00 UTC")
	assert.Contains(t, res.Message, "<b>Docs</b>\n⚠️ Failed to fetch data")
	assert.Contains(t, res.Message, "Total Views: 1,200")

	snap, err := m.GetSnapshot()
	require.NoError(t, err)
	assert.Equal(t, float64(2), snap["umami_report_umami_stats_requests_total"])
	assert.Equal(t, float64(1), snap["umami_report_umami_stats_failures_total"])
	assert.Equal(t, float64(1200), snap["umami_report_pageviews"])
	assert.Equal(t, float64(1), snap["umami_report_run_success"])

	assert.Contains(t, logs.String(), res.RunID)
	assert.NotContains(t, logs.String(), "hunter2")
}

func TestRun_AllSitesFailedStillDelivers(t *testing.T) {
	src := &fakeSource{errs: map[string]error{
		"a": errors.New("boom"),
		"b": errors.New("boom"),
	}}
	n := &recordingNotifier{}
	r, m, _ := newTestReporter(src, n, Options{
		Sites: []website.Site{{ID: "a", Label: "a"}, {ID: "b", Label: "b"}},
	})

	res, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrAllSitesFailed)
	require.NotNil(t, res)
	assert.True(t, res.Delivered)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "Total Views: 0")

	snap, err := m.GetSnapshot()
	require.NoError(t, err)
	assert.Equal(t, float64(0), snap["umami_report_run_success"])
}

func TestRun_AuthFailure(t *testing.T) {
	src := &fakeSource{authErr: &umami.APIError{Op: "login to Umami", StatusCode: http.StatusUnauthorized, Detail: "invalid credentials"}}
	n := &recordingNotifier{}
	r, _, _ := newTestReporter(src, n, Options{Sites: []website.Site{{ID: "a", Label: "a"}}})

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authenticating with umami")
	assert.True(t, umami.IsUnauthorized(err))
	assert.Empty(t, n.messages, "nothing is sent when authentication fails")
}

func TestRun_NotifyFailure(t *testing.T) {
	src := &fakeSource{stats: map[string]*umami.Stats{"a": {Pageviews: 1}}}
	n := &recordingNotifier{err: errors.New("chat not found")}
	r, _, _ := newTestReporter(src, n, Options{Sites: []website.Site{{ID: "a", Label: "a"}}})

	res, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivering report: chat not found")
	assert.False(t, res.Delivered)
}

func TestRun_InvalidPeriod(t *testing.T) {
	n := &recordingNotifier{}
	r, _, _ := newTestReporter(&fakeSource{}, n, Options{
		Sites:   []website.Site{{ID: "a", Label: "a"}},
		StartAt: "2024-05-07",
		EndAt:   "2024-05-01",
	})

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving report period")
	assert.Empty(t, n.messages)
}

func TestRun_CustomPeriod(t *testing.T) {
	src := &fakeSource{stats: map[string]*umami.Stats{"a": {}}}
	n := &recordingNotifier{}
	r, _, _ := newTestReporter(src, n, Options{
		Sites:    []website.Site{{ID: "a", Label: "a"}},
		StartAt:  "2024-05-01",
		EndAt:    "2024-05-07",
		Location: time.UTC,
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), src.gotRange.StartMillis())
	assert.Equal(t, time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC).UnixMilli()-1, src.gotRange.EndMillis())
	assert.Contains(t, n.messages[0], "📅 05/01 00:00 - 05/07 23:59")
}

func TestRun_ResolveNames(t *testing.T) {
	src := &fakeSource{
		stats: map[string]*umami.Stats{"a": {}, "b": {}, "c": {}, "d": {}},
		names: map[string]*umami.Website{
			"a": {ID: "a", Name: "Blog", Domain: "blog.example.com"},
			"b": {ID: "b", Domain: "docs.example.com"},
			"d": {ID: "d", Name: "Ignored"},
		},
	}
	sites := []website.Site{
		{ID: "a", Label: "a"},
		{ID: "b", Label: "b"},
		{ID: "c", Label: "c"},
		{ID: "d", Label: "Shop"},
	}
	n := &recordingNotifier{}
	r, _, _ := newTestReporter(src, n, Options{Sites: sites, ResolveNames: true})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []website.Site{
		{ID: "a", Label: "Blog"},
		{ID: "b", Label: "docs.example.com"},
		{ID: "c", Label: "c"},
		{ID: "d", Label: "Shop"},
	}, src.gotSites)
	assert.Equal(t, "a", sites[0].Label, "configured sites are not modified")
}

func TestRun_PushesMetrics(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	src := &fakeSource{stats: map[string]*umami.Stats{"a": {Pageviews: 5}}}
	r, m, _ := newTestReporter(src, &recordingNotifier{}, Options{
		Sites:          []website.Site{{ID: "a", Label: "a"}},
		PushgatewayURL: gateway.URL,
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /metrics/job/umami_report"}, paths)
	count, err := testutil.GatherAndCount(m.Registry(), "umami_report_notify_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_PushFailureIsNotFatal(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	src := &fakeSource{stats: map[string]*umami.Stats{"a": {}}}
	r, _, logs := newTestReporter(src, &recordingNotifier{}, Options{
		Sites:          []website.Site{{ID: "a", Label: "a"}},
		PushgatewayURL: gateway.URL,
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Failed to push metrics")
}
