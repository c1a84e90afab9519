package finn

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/listing"
	"github.com/spigell/job-scanner/internal/utils"
)

const (
	adPath        = "/job/ad/"
	maxTitleRunes = 100
)

var (
	adPathRe   = regexp.MustCompile(`/job/ad/(\d+)`)
	finnkodeRe = regexp.MustCompile(`[?&]finnkode=(\d+)`)

	companySelectors  = []string{"[data-testid*='company']", "[class*='company']", "[class*='employer']"}
	locationSelectors = []string{"[data-testid*='location']", "[class*='location']"}
	postedSelectors   = []string{"[data-testid*='published']", "[class*='published']"}
)

// SearchResult is the outcome of walking the search pages.
type SearchResult struct {
	Stubs []listing.Stub
	Pages int
	// Limited is set when the listing cap left out a listing seen on the
	// last fetched page. Pages after a full one are not fetched.
	Limited bool
}

func (r *SearchResult) Len() int {
	return len(r.Stubs)
}

// Search fetches the search results for searchURL and returns up to
// MaxListings stubs collected from at most MaxPages pages.
func (c *Client) Search(ctx context.Context, searchURL string) (*SearchResult, error) {
	base, err := url.Parse(strings.TrimSpace(searchURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &FetchError{URL: searchURL, Message: "invalid search url", Cause: err}
	}

	result := &SearchResult{}
	seen := make(map[string]struct{})

	for page := 1; page <= c.opts.MaxPages; page++ {
		if page > 1 {
			c.logger.Debug("additional page needed", zap.Int("page", page), zap.Duration("delay", c.opts.PageDelay))
			if err := utils.WaitFor(ctx, c.opts.PageDelay); err != nil {
				return nil, &FetchError{URL: searchURL, Message: "waiting for next page", Cause: err}
			}
		}

		pageURL := withPage(base, page)

		body, err := c.get(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.logger.Warn("stopping pagination", zap.Int("page", page), zap.Error(err))
			break
		}

		stubs, err := parseSearchPage(body, base)
		if err != nil {
			return nil, &ParseError{URL: pageURL, Message: "read search page", Cause: err}
		}

		if page == 1 && len(stubs) == 0 {
			return nil, &ParseError{URL: pageURL, Message: "no listing links found"}
		}

		fresh := 0
		for _, stub := range stubs {
			if _, ok := seen[stub.Code]; ok {
				continue
			}
			if len(result.Stubs) >= c.opts.MaxListings {
				result.Limited = true
				break
			}
			seen[stub.Code] = struct{}{}
			result.Stubs = append(result.Stubs, stub)
			fresh++
		}

		if fresh > 0 {
			result.Pages = page
		}

		c.logger.Debug("parsed search page",
			zap.Int("page", page),
			zap.Int("listings", fresh),
			zap.Int("total", len(result.Stubs)),
		)

		if fresh == 0 || len(result.Stubs) >= c.opts.MaxListings {
			break
		}
	}

	c.logger.Info("found listings",
		zap.Int("count", result.Len()),
		zap.Int("pages", result.Pages),
		zap.Bool("limited", result.Limited),
	)

	return result, nil
}

// parseSearchPage extracts one stub per listing anchor. Anchors without a
// title are skipped; duplicates are left for the caller to collapse.
func parseSearchPage(body []byte, base *url.URL) ([]listing.Stub, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var stubs []listing.Stub
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		code := adCode(href)
		if code == "" {
			return
		}

		ref, err := base.Parse(href)
		if err != nil {
			return
		}

		title := cleanText(a.Text())
		if title == "" {
			title = cleanText(a.AttrOr("aria-label", a.AttrOr("title", "")))
		}

		stub := listing.Stub{
			Title: truncateRunes(title, maxTitleRunes),
			URL:   canonicalURL(ref, code),
			Code:  code,
		}

		if card := a.Closest("article"); card.Length() > 0 {
			stub.Company = firstText(card, companySelectors)
			stub.Location = firstText(card, locationSelectors)
			stub.PostedDate = postedDate(card)
		}

		if !stub.Valid() {
			return
		}

		stubs = append(stubs, stub)
	})

	return stubs, nil
}

func adCode(href string) string {
	if m := adPathRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := finnkodeRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func canonicalURL(ref *url.URL, code string) string {
	u := url.URL{Scheme: ref.Scheme, Host: ref.Host, Path: adPath + code}
	return u.String()
}

func withPage(base *url.URL, page int) string {
	if page <= 1 {
		return base.String()
	}

	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String()
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := cleanText(s.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func postedDate(card *goquery.Selection) string {
	if t := card.Find("time").First(); t.Length() > 0 {
		if dt := strings.TrimSpace(t.AttrOr("datetime", "")); dt != "" {
			return dt
		}
		if text := cleanText(t.Text()); text != "" {
			return text
		}
	}
	return firstText(card, postedSelectors)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
