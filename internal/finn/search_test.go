package finn

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func card(code, title, company, location string) string {
	return fmt.Sprintf(`
<article class="sf-search-ad">
  <a href="/job/ad/%s" class="sf-search-ad-link"><img alt=""></a>
  <h2><a href="/job/ad/%s" class="sf-search-ad-link">%s</a></h2>
  <div class="job-card__company">%s</div>
  <span class="job-card__location">%s</span>
  <time datetime="2026-10-17">17. okt.</time>
</article>`, code, code, title, company, location)
}

func searchPage(cards ...string) string {
	return "<html><body><nav><a href=\"/job/search\">Søk</a></nav><main>" + strings.Join(cards, "\n") + "</main></body></html>"
}

func newTestClient(opts Options) *Client {
	return New(zap.NewNop(), opts)
}

func TestSearchReturnsWellFormedStubs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(searchPage(
			card("101", "Økonomisjef", "Maritime AS", "Ålesund"),
			card("102", "Digitaliseringsleder", "Havn KF", "Molde"),
			card("103", "Forretningsutvikler", "Sjø og Land", "Kristiansund"),
		)))
	}))
	defer server.Close()

	result, err := newTestClient(Options{}).Search(context.Background(), server.URL+"/job/search?location=0.20001")
	require.NoError(t, err)
	require.Len(t, result.Stubs, 3)

	first := result.Stubs[0]
	assert.Equal(t, "Økonomisjef", first.Title)
	assert.Equal(t, server.URL+"/job/ad/101", first.URL)
	assert.Equal(t, "101", first.Code)
	assert.Equal(t, "Maritime AS", first.Company)
	assert.Equal(t, "Ålesund", first.Location)
	assert.Equal(t, "2026-10-17", first.PostedDate)

	for _, stub := range result.Stubs {
		assert.NotEmpty(t, stub.Title)
		assert.NotEmpty(t, stub.URL)
	}
	assert.Equal(t, 1, result.Pages)
	assert.False(t, result.Limited)
}

func TestSearchSendsConfiguredUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(searchPage(card("1", "A", "", ""))))
	}))
	defer server.Close()

	_, err := newTestClient(Options{UserAgent: "job-scanner-test"}).Search(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "job-scanner-test", got)
}

func TestSearchSkipsListingsWithoutTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/job/ad/201"><img alt=""></a>
			<a href="/job/ad/202">Prosjektleder</a>
			<a href="https://www.finn.no/job/fulltime/ad.html?finnkode=203">Controller</a>
			<a href="/job/search?industry=65">Not a listing</a>
		</body></html>`))
	}))
	defer server.Close()

	result, err := newTestClient(Options{}).Search(context.Background(), server.URL+"/job/search")
	require.NoError(t, err)
	require.Len(t, result.Stubs, 2)
	assert.Equal(t, "202", result.Stubs[0].Code)
	assert.Equal(t, "203", result.Stubs[1].Code)
	assert.Equal(t, "https://www.finn.no/job/ad/203", result.Stubs[1].URL)
}

func TestSearchCapsListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(searchPage(
			card("1", "A", "", ""),
			card("2", "B", "", ""),
			card("3", "C", "", ""),
		)))
	}))
	defer server.Close()

	result, err := newTestClient(Options{MaxListings: 2}).Search(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, result.Stubs, 2)
	assert.True(t, result.Limited)
}

func TestSearchExactlyAtCapIsNotLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(searchPage(card("1", "A", "", ""), card("2", "B", "", ""))))
	}))
	defer server.Close()

	result, err := newTestClient(Options{MaxListings: 2, MaxPages: 3}).Search(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, result.Stubs, 2)
	assert.False(t, result.Limited)
	assert.Equal(t, 1, result.Pages)
}

func TestSearchDecodesGzipPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))

		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")

		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(searchPage(card("301", "Regnskapsfører", "Tall AS", "Molde"))))
		_ = gz.Close()
	}))
	defer server.Close()

	result, err := newTestClient(Options{}).Search(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, result.Stubs, 1)
	assert.Equal(t, "Regnskapsfører", result.Stubs[0].Title)
	assert.Equal(t, "Tall AS", result.Stubs[0].Company)
}

func TestSearchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte(searchPage(card("1", "A", "", ""))))
	}))
	defer server.Close()

	_, err := newTestClient(Options{Timeout: 50 * time.Millisecond}).Search(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
}

func TestSearchKeepsStubsWhenLaterPageFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(searchPage(card("1", "A", "", ""), card("2", "B", "", ""))))
	}))
	defer server.Close()

	result, err := newTestClient(Options{MaxPages: 3}).Search(context.Background(), server.URL+"/job/search")
	require.NoError(t, err)
	assert.Len(t, result.Stubs, 2)
	assert.Equal(t, 1, result.Pages)
	assert.False(t, result.Limited)
}

func TestSearchFollowsPages(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		switch page {
		case "":
			_, _ = w.Write([]byte(searchPage(card("1", "A", "", ""), card("2", "B", "", ""))))
		case "2":
			_, _ = w.Write([]byte(searchPage(card("2", "B", "", ""), card("3", "C", "", ""))))
		default:
			_, _ = w.Write([]byte(searchPage()))
		}
	}))
	defer server.Close()

	result, err := newTestClient(Options{MaxPages: 5}).Search(context.Background(), server.URL+"/job/search?published=1")
	require.NoError(t, err)

	codes := make([]string, 0, len(result.Stubs))
	for _, stub := range result.Stubs {
		codes = append(codes, stub.Code)
	}
	assert.Equal(t, []string{"1", "2", "3"}, codes)
	assert.Equal(t, []string{"", "2", "3"}, requested)
	assert.Equal(t, 2, result.Pages)
}

func TestSearchFailures(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient(Options{}).Search(context.Background(), server.URL)
		require.Error(t, err)

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		_, err := newTestClient(Options{}).Search(context.Background(), addr)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
	})

	t.Run("no listings", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html><body><p>Maintenance</p></body></html>"))
		}))
		defer server.Close()

		_, err := newTestClient(Options{}).Search(context.Background(), server.URL)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, err.Error(), "no listing links found")
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := newTestClient(Options{}).Search(context.Background(), "not a url")
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
	})
}

func TestWithPage(t *testing.T) {
	server := "https://www.finn.no/job/search?location=0.20001"
	base, err := url.Parse(server)
	require.NoError(t, err)

	assert.Equal(t, server, withPage(base, 1))
	assert.Equal(t, "https://www.finn.no/job/search?location=0.20001&page=3", withPage(base, 3))
}
