package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pfrederiksen/umami-report/internal/app"
	"github.com/pfrederiksen/umami-report/internal/umami"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// SiteOutput is one website in the run summary
type SiteOutput struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	Stats *umami.Stats `json:"stats,omitempty"`
}

// OutputResult contains data to be output
type OutputResult struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	PeriodStart time.Time        `json:"period_start"`
	PeriodEnd   time.Time        `json:"period_end"`
	AuthMethod  umami.AuthMethod `json:"auth_method"`
	Sites       []SiteOutput     `json:"sites"`
	Totals      umami.Stats      `json:"totals"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Delivered   bool             `json:"delivered"`
	DryRun      bool             `json:"dry_run,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
}

// NewOutputResult summarizes a finished run
func NewOutputResult(res *app.Result, dryRun bool) *OutputResult {
	rep := res.Report
	out := &OutputResult{
		RunID:       res.RunID,
		GeneratedAt: rep.GeneratedAt.UTC(),
		PeriodStart: rep.Range.Start.UTC(),
		PeriodEnd:   rep.Range.End.UTC(),
		AuthMethod:  res.AuthMethod,
		Sites:       make([]SiteOutput, 0, len(rep.Sites)),
		Totals:      res.Totals,
		Succeeded:   rep.Succeeded(),
		Failed:      rep.Failed(),
		Delivered:   res.Delivered,
		DryRun:      dryRun,
		DurationMS:  res.Duration.Milliseconds(),
	}
	for _, s := range rep.Sites {
		out.Sites = append(out.Sites, SiteOutput{
			ID:    s.Site.ID,
			Label: s.Site.Label,
			OK:    s.OK(),
			Error: s.Error(),
			Stats: s.Stats,
		})
	}
	return out
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	status := "sent"
	switch {
	case result.DryRun:
		status = "printed (dry run)"
	case !result.Delivered:
		status = "not sent"
	}

	if verbose {
		for _, s := range result.Sites {
			if !s.OK {
				fmt.Fprintf(w, "FAILED %s (%s): %s\n", s.Label, s.ID, s.Error)
				continue
			}
			fmt.Fprintf(w, "OK     %s (%s): %s views, %s visitors, %s visits\n",
				s.Label, s.ID,
				humanize.Comma(s.Stats.Pageviews),
				humanize.Comma(s.Stats.Visitors),
				humanize.Comma(s.Stats.Visits))
		}
		fmt.Fprintf(w, "Run: %s (auth: %s, %dms)\n", result.RunID, result.AuthMethod, result.DurationMS)
	}

	fmt.Fprintf(w, "Report %s: %d/%d websites, %s views, %s visitors\n",
		status,
		result.Succeeded, result.Succeeded+result.Failed,
		humanize.Comma(result.Totals.Pageviews),
		humanize.Comma(result.Totals.Visitors))

	return nil
}
