package filtering

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-scanner/internal/listing"
)

func stubs() []listing.Stub {
	return []listing.Stub{
		{Title: "Økonomisjef", URL: "https://www.finn.no/job/ad/1", Company: "Maritime AS"},
		{Title: "Lagerarbeider, deltid", URL: "https://www.finn.no/job/ad/2", Company: "Manpower Norge AS"},
		{Title: "Controller", URL: "https://www.finn.no/job/ad/3"},
		{Title: "Sommerjobb i butikk", URL: "https://www.finn.no/job/ad/4", Company: "Rema 1000"},
	}
}

func urls(stubs []listing.Stub) []string {
	out := make([]string, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, s.URL)
	}
	return out
}

func TestRunAppliesFiltersInOrder(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := &Config{
		Companies:     []string{" manpower "},
		TitleKeywords: []string{"SOMMERJOBB", ""},
	}

	left, dropped, err := Run(context.Background(), cfg, Deps{Logger: zap.New(core)}, Default(), stubs())
	require.NoError(t, err)

	assert.Equal(t, 2, dropped)
	assert.Equal(t, []string{"https://www.finn.no/job/ad/1", "https://www.finn.no/job/ad/3"}, urls(left))

	steps := logs.FilterMessage("filter step").All()
	require.Len(t, steps, 2)
	assert.Equal(t, "companies", steps[0].ContextMap()["name"])
	assert.Equal(t, int64(1), steps[0].ContextMap()["dropped"])
	assert.Equal(t, "title_keywords", steps[1].ContextMap()["name"])
}

func TestRunWithoutConfigKeepsEverything(t *testing.T) {
	left, dropped, err := Run(context.Background(), nil, Deps{}, Default(), stubs())
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Len(t, left, 4)
}

func TestCompaniesKeepsStubsWithoutCompany(t *testing.T) {
	f := NewCompanies()
	require.NoError(t, f.Validate(&Config{Companies: []string{"a"}}))

	left, step, err := f.Apply(context.Background(), Deps{}, []listing.Stub{{Title: "X", URL: "u"}})
	require.NoError(t, err)
	assert.Len(t, left, 1)
	assert.Equal(t, Step{Initial: 1, Dropped: 0, Left: 1}, step)
}

func TestDisableByName(t *testing.T) {
	steps := Default()
	DisableByName(steps, "title_keywords", "requested")

	cfg := &Config{TitleKeywords: []string{"controller"}}
	left, dropped, err := Run(context.Background(), cfg, Deps{}, steps, stubs())
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Len(t, left, 4)

	statuses := Describe(steps)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Enabled)
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "requested", statuses[1].Reason)
}

type failingFilter struct{ companiesFilter }

func (f *failingFilter) Name() string { return "failing" }

func (f *failingFilter) Validate(*Config) error { return errors.New("broken") }

func TestRunStopsOnValidationError(t *testing.T) {
	_, _, err := Run(context.Background(), &Config{}, Deps{}, []Filter{&failingFilter{}}, stubs())
	require.Error(t, err)
	assert.Equal(t, "failing: broken", err.Error())
}

func TestDescribeReportsDetails(t *testing.T) {
	steps := Default()
	require.NoError(t, steps[0].Validate(&Config{Companies: []string{"B", "a"}}))

	statuses := Describe(steps)
	assert.Equal(t, "b,a", statuses[0].Details["companies"])
	assert.Empty(t, statuses[1].Details)
}
