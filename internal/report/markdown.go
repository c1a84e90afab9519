package report

import (
	"fmt"
	"strings"

	"github.com/spigell/job-scanner/internal/ai"
)

const (
	maxTableTitle = 60
	notAvailable  = "N/A"
)

var cellEscaper = strings.NewReplacer("|", `\|`)

// Render produces the Markdown document. The output depends only on the
// report contents, so rendering the same report twice yields the same bytes.
func Render(rep *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Job Match Report - %s\n\n", rep.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Generated:** %s\n", rep.GeneratedAt.Format("2006-01-02 15:04 MST"))
	if rep.SearchURL != "" {
		fmt.Fprintf(&b, "**Search:** %s\n", rep.SearchURL)
	}
	fmt.Fprintf(&b, "**Minimum score:** %d\n\n", rep.MinimumScore)

	writeSummary(&b, rep.Entries)
	writeDetails(&b, rep.Entries)
	writeStatistics(&b, rep)

	b.WriteString("*Report generated automatically by job-scanner*\n")

	return b.String()
}

func writeSummary(b *strings.Builder, entries []*ai.ScoreResult) {
	b.WriteString("## Summary\n\n")
	b.WriteString("| Score | Title | Company | Location | Link |\n")
	b.WriteString("|-------|-------|---------|----------|------|\n")

	if len(entries) == 0 {
		b.WriteString("| - | No matching jobs found | - | - | - |\n\n")
		return
	}

	for _, entry := range entries {
		d := entry.Listing
		fmt.Fprintf(b, "| **%d** | %s | %s | %s | [View](%s) |\n",
			entry.Score,
			cell(truncate(inline(d.TitleText()), maxTableTitle)),
			cell(orNA(d.CompanyName())),
			cell(orNA(d.LocationName())),
			d.URL(),
		)
	}
	b.WriteString("\n")
}

func writeDetails(b *strings.Builder, entries []*ai.ScoreResult) {
	if len(entries) == 0 {
		return
	}

	b.WriteString("## Details\n\n")
	for i, entry := range entries {
		d := entry.Listing
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, inline(d.TitleText()))
		fmt.Fprintf(b, "- **Score:** %d/100\n", entry.Score)
		fmt.Fprintf(b, "- **Company:** %s\n", orNA(inline(d.CompanyName())))
		fmt.Fprintf(b, "- **Location:** %s\n", orNA(inline(d.LocationName())))
		if d.Deadline != nil {
			fmt.Fprintf(b, "- **Deadline:** %s\n", d.Deadline.Format("2006-01-02"))
		}
		if d.JobType != "" {
			fmt.Fprintf(b, "- **Job type:** %s\n", inline(d.JobType))
		}
		fmt.Fprintf(b, "- **Rationale:** %s\n", inline(entry.Rationale))
		fmt.Fprintf(b, "- **Link:** [View on FINN](%s)\n\n", d.URL())
		b.WriteString("---\n\n")
	}
}

func writeStatistics(b *strings.Builder, rep *Report) {
	b.WriteString("## Statistics\n\n")
	fmt.Fprintf(b, "- Listings fetched: %d\n", rep.Stats.Fetched)
	fmt.Fprintf(b, "- Excluded by filters: %d\n", rep.Stats.Filtered)
	fmt.Fprintf(b, "- Analyzed: %d\n", rep.Stats.Analyzed)
	fmt.Fprintf(b, "- Included: %d\n", rep.Included())
	fmt.Fprintf(b, "- Below threshold: %d\n", rep.BelowThreshold())
	fmt.Fprintf(b, "- Errors: %d\n", len(rep.Stats.Errors))
	fmt.Fprintf(b, "- High match (%d+): %d\n", highMatchScore, rep.High)
	fmt.Fprintf(b, "- Medium match (%d-%d): %d\n\n", mediumMatchScore, highMatchScore-1, rep.Medium)

	if len(rep.Stats.Errors) == 0 {
		return
	}

	b.WriteString("### Errors\n\n")
	for _, e := range rep.Stats.Errors {
		fmt.Fprintf(b, "- %s: %s\n", e.URL, inline(e.Message))
	}
	b.WriteString("\n")
}

func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cell(s string) string {
	return cellEscaper.Replace(inline(s))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
