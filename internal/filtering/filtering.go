package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/listing"
)

// Filter represents a single filtering step applied to listing stubs before
// any detail page is fetched.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, stubs []listing.Stub) ([]listing.Stub, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Companies     []string
	TitleKeywords []string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the filters applied on every run, in order.
func Default() []Filter {
	return []Filter{NewCompanies(), NewTitleKeywords()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the stubs left
// together with the number of stubs dropped across all steps.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, stubs []listing.Stub) ([]listing.Stub, int, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	dropped := 0
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, stubs)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		dropped += info.Dropped
		stubs = next
	}

	return stubs, dropped, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// exclude keeps the stubs for which field yields a value that contains none
// of the patterns, compared case-insensitively. It returns the kept stubs and
// the URLs of the dropped ones.
func exclude(stubs []listing.Stub, patterns []string, field func(listing.Stub) string) ([]listing.Stub, []string) {
	kept := make([]listing.Stub, 0, len(stubs))
	var dropped []string

	for _, stub := range stubs {
		value := strings.ToLower(field(stub))
		if value != "" && containsAny(value, patterns) {
			dropped = append(dropped, stub.URL)
			continue
		}
		kept = append(kept, stub)
	}

	return kept, dropped
}

func containsAny(value string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func normalizePatterns(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			result = append(result, v)
		}
	}
	return result
}
