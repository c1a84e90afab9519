package finn

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "nb-NO,nb;q=0.9,en-US;q=0.8,en;q=0.5"

	// Pages bigger than this are cut; FINN ads are far below it.
	maxBodyBytes = 8 << 20
)

// get makes a single GET request and returns the decoded body.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: "build request", Cause: err}
	}

	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", rawURL))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("bad status: %s", resp.Status),
		}
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &FetchError{URL: rawURL, Message: "open gzip body", Cause: err}
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: "read body", Cause: err}
	}

	return data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip")
}
