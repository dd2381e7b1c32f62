package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pfrederiksen/umami-report/internal/report"
	"github.com/pfrederiksen/umami-report/internal/umami"
)

// DefaultTitle heads every digest unless overridden.
const DefaultTitle = "Umami Statistics Report"

// DefaultLocation is the zone the report timestamp is shown in.
var DefaultLocation = time.FixedZone("UTC+8", 8*60*60)

// DigestOptions controls the digest header.
type DigestOptions struct {
	Title    string
	Location *time.Location
}

// FormatDigest formats a report as an HTML Telegram message: a header with
// the generation time and period, one block per site in configured order,
// and a summary when more than one site is configured.
func FormatDigest(rep *report.Report, opts DigestOptions) string {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	loc := opts.Location
	if loc == nil {
		loc = DefaultLocation
	}

	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("📊 <b>%s</b>\n", html.EscapeString(title)))
	msg.WriteString(fmt.Sprintf("⏰ %s\n", rep.GeneratedAt.In(loc).Format("2006-01-02 15:04:05 MST")))
	msg.WriteString(fmt.Sprintf("📅 %s\n", rep.Range.Describe(loc)))
	msg.WriteString("\n")

	for _, site := range rep.Sites {
		msg.WriteString(formatSite(site))
	}

	if rep.Multi() {
		msg.WriteString(formatSummary(rep.Totals()))
	}

	return strings.TrimRight(msg.String(), "\n")
}

func formatSite(site report.SiteResult) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(site.Site.Label)))

	if !site.OK() {
		msg.WriteString("⚠️ Failed to fetch data\n\n")
		return msg.String()
	}

	s := site.Stats
	msg.WriteString(fmt.Sprintf("👁️ Views: %s\n", humanize.Comma(s.Pageviews)))
	msg.WriteString(fmt.Sprintf("👤 Visitors: %s\n", humanize.Comma(s.Visitors)))
	msg.WriteString(fmt.Sprintf("🔄 Visits: %s\n", humanize.Comma(s.Visits)))

	if rate, ok := s.BounceRate(); ok {
		msg.WriteString(fmt.Sprintf("📉 Bounce Rate: %.1f%%\n", rate))
	}
	if avg, ok := s.AvgVisit(); ok {
		msg.WriteString(fmt.Sprintf("⏱️ Avg Time: %s\n", FormatDuration(avg)))
	}

	msg.WriteString("\n")
	return msg.String()
}

func formatSummary(total umami.Stats) string {
	var msg strings.Builder
	msg.WriteString("\n<b>📈 Summary</b>\n")
	msg.WriteString(fmt.Sprintf("👁️  Total Views: %s\n", humanize.Comma(total.Pageviews)))
	msg.WriteString(fmt.Sprintf("👤  Total Visitors: %s\n", humanize.Comma(total.Visitors)))
	msg.WriteString(fmt.Sprintf("🔄  Total Visits: %s\n", humanize.Comma(total.Visits)))

	if rate, ok := total.BounceRate(); ok {
		msg.WriteString(fmt.Sprintf("📉  Avg Bounce Rate: %.1f%%\n", rate))
	}
	if avg, ok := total.AvgVisit(); ok {
		msg.WriteString(fmt.Sprintf("⏱️  Avg Visit Duration: %s\n", FormatDuration(avg)))
	}
	return msg.String()
}

// FormatDuration renders whole seconds as "Xm Ys", or "Ys" under a minute.
// Minutes are not rolled into hours.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	minutes, seconds := secs/60, secs%60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
