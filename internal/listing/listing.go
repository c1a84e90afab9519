// Package listing holds the job listing types shared by the fetchers, the
// scorer and the report.
package listing

import (
	"strings"
	"time"
)

// Stub is a single entry from a search results page. The URL is its identity.
type Stub struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Code       string `json:"code,omitempty"`
	Company    string `json:"company,omitempty"`
	Location   string `json:"location,omitempty"`
	PostedDate string `json:"posted_date,omitempty"`
}

// Valid reports whether the stub carries the fields every stage relies on.
func (s Stub) Valid() bool {
	return strings.TrimSpace(s.Title) != "" && strings.TrimSpace(s.URL) != ""
}

// Detail is the content of a listing's own page.
type Detail struct {
	Stub        Stub       `json:"stub"`
	Title       string     `json:"title,omitempty"`
	Company     string     `json:"company,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	JobType     string     `json:"job_type,omitempty"`
	RawHTML     string     `json:"-"`
}

// URL returns the identity of the underlying stub.
func (d *Detail) URL() string {
	return d.Stub.URL
}

// TitleText prefers the search result title and falls back to the page heading.
func (d *Detail) TitleText() string {
	return firstNonEmpty(d.Stub.Title, d.Title)
}

// CompanyName prefers the search result value and falls back to the page.
func (d *Detail) CompanyName() string {
	return firstNonEmpty(d.Stub.Company, d.Company)
}

// LocationName prefers the search result value and falls back to the page.
func (d *Detail) LocationName() string {
	return firstNonEmpty(d.Stub.Location, d.Location)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
