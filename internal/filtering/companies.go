package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/listing"
)

type companiesFilter struct {
	disabled  bool
	reason    string
	companies []string
}

// NewCompanies creates a filter that removes listings posted by companies
// configured in the config. Stubs without a company are kept.
func NewCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *companiesFilter) IsEnabled() bool { return !f.disabled }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = nil
	if cfg != nil {
		f.companies = normalizePatterns(cfg.Companies)
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, stubs []listing.Stub) ([]listing.Stub, Step, error) {
	initial := len(stubs)
	if len(f.companies) == 0 {
		return stubs, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept, excluded := exclude(stubs, f.companies, func(s listing.Stub) string { return s.Company })
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding listings by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
