package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/listing"
)

type titleKeywordsFilter struct {
	disabled bool
	reason   string
	keywords []string
}

// NewTitleKeywords creates a filter that removes listings whose title
// contains one of the configured keywords.
func NewTitleKeywords() Filter {
	return &titleKeywordsFilter{}
}

func (f *titleKeywordsFilter) Name() string { return "title_keywords" }

func (f *titleKeywordsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *titleKeywordsFilter) IsEnabled() bool { return !f.disabled }

func (f *titleKeywordsFilter) Validate(cfg *Config) error {
	f.keywords = nil
	if cfg != nil {
		f.keywords = normalizePatterns(cfg.TitleKeywords)
	}
	return nil
}

func (f *titleKeywordsFilter) Apply(_ context.Context, deps Deps, stubs []listing.Stub) ([]listing.Stub, Step, error) {
	initial := len(stubs)
	if len(f.keywords) == 0 {
		return stubs, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept, excluded := exclude(stubs, f.keywords, func(s listing.Stub) string { return s.Title })
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding listings by title keywords",
			zap.Strings("keywords", f.keywords),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *titleKeywordsFilter) Status() Status {
	details := map[string]string{}
	if len(f.keywords) > 0 {
		details["keywords"] = strings.Join(f.keywords, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
