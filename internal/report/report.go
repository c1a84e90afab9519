// Package report turns scored listings into the dated Markdown report.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spigell/job-scanner/internal/ai"
)

const (
	// DefaultFileLayout is a time layout: the run date is substituted into it.
	DefaultFileLayout = "job_report_20060102.md"

	highMatchScore   = 70
	mediumMatchScore = 40
)

// ListingError is a per-listing failure shown in the statistics footer.
type ListingError struct {
	URL     string
	Message string
}

// Stats are the run counters printed in the statistics footer.
type Stats struct {
	Fetched  int
	Filtered int
	Analyzed int
	Errors   []ListingError
}

// Options control which results are kept and how the report is labelled.
type Options struct {
	MinimumScore int
	SearchURL    string
	GeneratedAt  time.Time
	Stats        Stats
}

// Report is the filtered, ordered set of results plus everything needed to
// render it.
type Report struct {
	Entries      []*ai.ScoreResult
	MinimumScore int
	SearchURL    string
	GeneratedAt  time.Time
	Stats        Stats

	Scored int
	High   int
	Medium int
}

// Included is the number of listings in the report body.
func (r *Report) Included() int {
	return len(r.Entries)
}

// BelowThreshold is the number of scored listings left out of the body.
func (r *Report) BelowThreshold() int {
	return r.Scored - len(r.Entries)
}

// FileName substitutes the report date into layout.
func (r *Report) FileName(layout string) string {
	if layout == "" {
		layout = DefaultFileLayout
	}
	return r.GeneratedAt.Format(layout)
}

// Generate keeps the results scoring at least opts.MinimumScore and orders
// them by descending score. Equal scores keep their input order.
func Generate(results []*ai.ScoreResult, opts Options) (*Report, error) {
	if opts.MinimumScore < 0 || opts.MinimumScore > 100 {
		return nil, fmt.Errorf("minimum score %d is out of range [0,100]", opts.MinimumScore)
	}

	rep := &Report{
		MinimumScore: opts.MinimumScore,
		SearchURL:    opts.SearchURL,
		GeneratedAt:  opts.GeneratedAt,
		Stats:        opts.Stats,
		Entries:      make([]*ai.ScoreResult, 0, len(results)),
	}

	for _, result := range results {
		if result == nil || result.Listing == nil {
			return nil, errors.New("score result without listing")
		}

		rep.Scored++
		switch {
		case result.Score >= highMatchScore:
			rep.High++
		case result.Score >= mediumMatchScore:
			rep.Medium++
		}

		if result.Score >= opts.MinimumScore {
			rep.Entries = append(rep.Entries, result)
		}
	}

	sort.SliceStable(rep.Entries, func(i, j int) bool {
		return rep.Entries[i].Score > rep.Entries[j].Score
	})

	return rep, nil
}

// Write renders the report into dir under its dated file name and returns
// the path written.
func Write(dir, layout string, rep *Report) (string, error) {
	if rep == nil {
		return "", errors.New("report is nil")
	}

	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, rep.FileName(layout))
	if err := os.WriteFile(path, []byte(Render(rep)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return path, nil
}
