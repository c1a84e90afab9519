// Package finn scrapes job listings from FINN.no search and ad pages.
// Everything that depends on the site's markup lives here.
package finn

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultTimeout        = 30 * time.Second
	defaultMaxListings    = 50
	defaultMaxPages       = 1
	defaultMaxDescription = 4000

	// Upper bound for pagination regardless of configuration.
	maxPagesLimit = 10
)

// Options tune how search and ad pages are fetched.
type Options struct {
	UserAgent      string
	Timeout        time.Duration
	MaxListings    int
	MaxPages       int
	PageDelay      time.Duration
	MaxDescription int
	KeepHTML       bool
}

type Client struct {
	logger     *zap.Logger
	opts       Options
	HTTPClient *http.Client
}

func New(logger *zap.Logger, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	if opts.MaxListings <= 0 {
		opts.MaxListings = defaultMaxListings
	}

	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}

	if opts.MaxPages > maxPagesLimit {
		opts.MaxPages = maxPagesLimit
	}

	if opts.MaxDescription <= 0 {
		opts.MaxDescription = defaultMaxDescription
	}

	if opts.UserAgent == "" {
		opts.UserAgent = userAgent
	}

	return &Client{
		logger: logger,
		opts:   opts,
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}
