// Package pipeline runs one scan: search, filter, fetch details, score,
// report and notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/job-scanner/internal/ai"
	"github.com/spigell/job-scanner/internal/filtering"
	"github.com/spigell/job-scanner/internal/finn"
	"github.com/spigell/job-scanner/internal/listing"
	"github.com/spigell/job-scanner/internal/logger"
	"github.com/spigell/job-scanner/internal/report"
)

const defaultMaxJobs = 50

// Searcher returns the stubs found on the search pages.
type Searcher interface {
	Search(ctx context.Context, searchURL string) (*finn.SearchResult, error)
}

// DetailFetcher loads the ad page behind a stub.
type DetailFetcher interface {
	Detail(ctx context.Context, stub listing.Stub) (*listing.Detail, error)
}

// Notifier delivers the written report.
type Notifier interface {
	Send(ctx context.Context, rep *report.Report, path string) error
}

// Config is everything a run needs besides its collaborators.
type Config struct {
	SearchURL string
	Profile   string

	MinimumScore int
	MaxJobs      int
	// ScoringDelay is the minimum gap between two scoring calls.
	ScoringDelay time.Duration

	OutputDir  string
	FileLayout string

	Filters *filtering.Config
}

// Deps are the collaborators of a Runner. Notifier and Filters are optional.
type Deps struct {
	Searcher Searcher
	Details  DetailFetcher
	Scorer   ai.Scorer
	Notifier Notifier
	Filters  []filtering.Filter
	Logger   *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// RunStats are the counters of a single run.
type RunStats struct {
	TotalFetched  int
	TotalFiltered int
	// TotalAnalyzed counts the listings processed after the cap, whether or
	// not they were scored successfully.
	TotalAnalyzed int
	TotalIncluded int
	// Limited is set when the search stopped at the listing cap.
	Limited bool
	Errors  []report.ListingError
}

// BelowThreshold is the number of scored listings that did not make the report.
func (s *RunStats) BelowThreshold() int {
	return s.TotalAnalyzed - s.TotalIncluded - len(s.Errors)
}

func (s *RunStats) recordError(url string, err error) {
	s.Errors = append(s.Errors, report.ListingError{URL: url, Message: err.Error()})
}

func (s *RunStats) summary() report.Stats {
	return report.Stats{
		Fetched:  s.TotalFetched,
		Filtered: s.TotalFiltered,
		Analyzed: s.TotalAnalyzed,
		Errors:   s.Errors,
	}
}

// Result is the outcome of a completed run.
type Result struct {
	Report *report.Report
	Path   string
	Stats  RunStats
	// NotifyErr is the delivery failure, if any. It does not fail the run.
	NotifyErr error
}

type Runner struct {
	cfg     Config
	deps    Deps
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New validates cfg and deps and returns a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if strings.TrimSpace(cfg.SearchURL) == "" {
		return nil, errors.New("search url is required")
	}
	if strings.TrimSpace(cfg.Profile) == "" {
		return nil, errors.New("candidate profile is required")
	}
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Details == nil {
		return nil, errors.New("detail fetcher is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("scorer is required")
	}

	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = defaultMaxJobs
	}
	if cfg.MinimumScore < 0 || cfg.MinimumScore > 100 {
		return nil, fmt.Errorf("minimum score %d is out of range [0,100]", cfg.MinimumScore)
	}
	if cfg.ScoringDelay < 0 {
		return nil, errors.New("scoring delay must not be negative")
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Runner{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.WithFields(deps.Logger),
		limiter: newPacer(cfg.ScoringDelay),
	}, nil
}

// newPacer hands out one token per delay with a burst of one, so consecutive
// waits are at least delay apart.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Run executes the scan. Search failures and a report that cannot be written
// abort the run; per-listing failures are recorded in the stats.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	stats := RunStats{}

	r.logger.Info("starting the search", zap.String("url", r.cfg.SearchURL))

	found, err := r.deps.Searcher.Search(ctx, r.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("search: %w", &finn.ParseError{URL: r.cfg.SearchURL, Message: "no search result"})
	}

	stats.TotalFetched = found.Len()
	stats.Limited = found.Limited

	stubs, dropped, err := filtering.Run(ctx, r.cfg.Filters, filtering.Deps{Logger: r.logger}, r.deps.Filters, found.Stubs)
	if err != nil {
		return nil, fmt.Errorf("filtering: %w", err)
	}
	stats.TotalFiltered = dropped

	if len(stubs) > r.cfg.MaxJobs {
		r.logger.Info("capping listings to analyze",
			zap.Int("available", len(stubs)),
			zap.Int("max_jobs", r.cfg.MaxJobs),
		)
		stubs = stubs[:r.cfg.MaxJobs]
	}

	results, err := r.analyze(ctx, stubs, &stats)
	if err != nil {
		return nil, err
	}

	rep, err := report.Generate(results, report.Options{
		MinimumScore: r.cfg.MinimumScore,
		SearchURL:    r.cfg.SearchURL,
		GeneratedAt:  r.deps.Now(),
		Stats:        stats.summary(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	stats.TotalIncluded = rep.Included()

	path, err := report.Write(r.cfg.OutputDir, r.cfg.FileLayout, rep)
	if err != nil {
		return nil, err
	}

	r.logger.Info("report written",
		zap.String("path", path),
		zap.Int("fetched", stats.TotalFetched),
		zap.Int("filtered", stats.TotalFiltered),
		zap.Int("analyzed", stats.TotalAnalyzed),
		zap.Int("included", stats.TotalIncluded),
		zap.Int("below_threshold", stats.BelowThreshold()),
		zap.Int("errors", len(stats.Errors)),
	)

	result := &Result{Report: rep, Path: path, Stats: stats}

	if r.deps.Notifier != nil {
		if err := r.deps.Notifier.Send(ctx, rep, path); err != nil {
			r.logger.Warn("sending report failed", zap.Error(err))
			result.NotifyErr = err
		}
	}

	return result, nil
}

// analyze fetches and scores each stub in order. Only cancellation of ctx
// stops the loop early.
func (r *Runner) analyze(ctx context.Context, stubs []listing.Stub, stats *RunStats) ([]*ai.ScoreResult, error) {
	results := make([]*ai.ScoreResult, 0, len(stubs))

	for i, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted: %w", err)
		}

		stats.TotalAnalyzed++
		log := r.logger.With(logger.ListingFields(stub.URL, stub.Title)...)
		log.Info("analyzing listing", zap.Int("position", i+1), zap.Int("total", len(stubs)))

		result, err := r.analyzeOne(ctx, stub)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("run interrupted: %w", ctxErr)
			}
			log.Warn("listing skipped", zap.String("reason", errorKind(err)), zap.Error(err))
			stats.recordError(stub.URL, err)
			continue
		}

		log.Info("listing scored", zap.Int("score", result.Score))
		results = append(results, result)
	}

	return results, nil
}

func (r *Runner) analyzeOne(ctx context.Context, stub listing.Stub) (*ai.ScoreResult, error) {
	detail, err := r.deps.Details.Detail(ctx, stub)
	if err != nil {
		return nil, err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return r.deps.Scorer.Score(ctx, r.cfg.Profile, detail)
}

func errorKind(err error) string {
	var (
		fetchErr *finn.FetchError
		parseErr *finn.ParseError
		apiErr   *ai.APIError
		scoreErr *ai.ScoreParseError
	)

	switch {
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &scoreErr):
		return "score_parse"
	default:
		return "unknown"
	}
}
