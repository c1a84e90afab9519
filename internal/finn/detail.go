package finn

import (
	"bytes"
	"context"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/job-scanner/internal/listing"
)

const noiseSelector = "script, style, noscript, nav, header, footer, iframe, svg, form"

var (
	deadlineLabels = []string{"frist", "søknadsfrist", "deadline", "application deadline"}
	jobTypeLabels  = []string{"stillingstype", "ansettelsesform", "job type", "employment type"}

	deadlineLayouts = []string{"02.01.2006", "2.1.2006", "2006-01-02"}
)

// Detail fetches the ad page of stub and extracts its description and the
// structured fields that are present.
func (c *Client) Detail(ctx context.Context, stub listing.Stub) (*listing.Detail, error) {
	body, err := c.get(ctx, stub.URL)
	if err != nil {
		return nil, err
	}

	detail, err := parseDetailPage(stub, body, c.opts.MaxDescription)
	if err != nil {
		return nil, err
	}

	if c.opts.KeepHTML {
		detail.RawHTML = string(body)
	}

	c.logger.Debug("parsed listing page",
		zap.String("url", stub.URL),
		zap.Int("description_length", len([]rune(detail.Description))),
		zap.Bool("has_deadline", detail.Deadline != nil),
	)

	return detail, nil
}

func parseDetailPage(stub listing.Stub, body []byte, maxDescription int) (*listing.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: stub.URL, Message: "read listing page", Cause: err}
	}

	detail := &listing.Detail{
		Stub:  stub,
		Title: cleanText(doc.Find("h1").First().Text()),
	}

	detail.Company = cleanText(doc.Find("a[href*='/job/employer/company/']").First().Text())
	if detail.Company == "" {
		detail.Company = cleanText(doc.Find("a[href*='orgId=']").First().Text())
	}
	detail.Location = cleanText(doc.Find("a[href*='location=']").First().Text())

	labels := labelledValues(doc)
	detail.Deadline = parseDeadline(lookup(labels, deadlineLabels))
	detail.JobType = lookup(labels, jobTypeLabels)

	doc.Find(noiseSelector).Remove()

	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}

	description := descriptionText(content)
	if description == "" {
		return nil, &ParseError{URL: stub.URL, Message: "no description text"}
	}

	detail.Description = truncateRunes(description, maxDescription)

	return detail, nil
}

// descriptionText renders the selection as Markdown, falling back to plain
// text when conversion fails.
func descriptionText(content *goquery.Selection) string {
	html, err := content.Html()
	if err != nil {
		return squeezeLines(content.Text())
	}

	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return squeezeLines(content.Text())
	}

	return squeezeLines(md)
}

// labelledValues collects "label → value" pairs from definition lists and
// from list items whose first child is the label.
func labelledValues(doc *goquery.Document) map[string]string {
	values := make(map[string]string)

	add := func(label, value string) {
		key := normalizeLabel(label)
		value = strings.TrimSpace(strings.TrimPrefix(cleanText(value), ":"))
		if key == "" || value == "" {
			return
		}
		if _, ok := values[key]; !ok {
			values[key] = value
		}
	}

	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		add(dt.Text(), dt.NextFiltered("dd").Text())
	})

	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		first := li.Children().First()
		if first.Length() == 0 {
			return
		}
		label := cleanText(first.Text())
		add(label, strings.TrimPrefix(cleanText(li.Text()), label))
	})

	return values
}

func normalizeLabel(label string) string {
	label = strings.ToLower(cleanText(label))
	return strings.TrimSpace(strings.TrimSuffix(label, ":"))
}

func lookup(values map[string]string, keys []string) string {
	for _, key := range keys {
		if v, ok := values[key]; ok {
			return v
		}
	}
	return ""
}

func parseDeadline(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}

	return nil
}

// squeezeLines trims every line and collapses runs of blank lines.
func squeezeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
