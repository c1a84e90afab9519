package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStubValid(t *testing.T) {
	assert.True(t, Stub{Title: "Go Developer", URL: "https://www.finn.no/job/ad/1"}.Valid())
	assert.False(t, Stub{Title: "  ", URL: "https://www.finn.no/job/ad/1"}.Valid())
	assert.False(t, Stub{Title: "Go Developer"}.Valid())
}

func TestDetailFallbacks(t *testing.T) {
	d := &Detail{
		Stub:     Stub{Title: "Backend engineer", URL: "https://www.finn.no/job/ad/2", Location: "Ålesund"},
		Title:    "Backend engineer (Go)",
		Company:  "Acme AS",
		Location: "Oslo",
	}

	assert.Equal(t, "https://www.finn.no/job/ad/2", d.URL())
	assert.Equal(t, "Backend engineer", d.TitleText())
	assert.Equal(t, "Acme AS", d.CompanyName())
	assert.Equal(t, "Ålesund", d.LocationName())

	d.Stub.Title = ""
	assert.Equal(t, "Backend engineer (Go)", d.TitleText())
}
