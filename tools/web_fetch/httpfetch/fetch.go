// Package httpfetch downloads pages over plain HTTP and converts them
// to text. It is the default fetcher; chromedp covers pages that need
// rendering.
package httpfetch

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch/convert"
	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch/models"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Fetch downloads one URL per call. Each run of the pipeline creates
// its own Fetch so connection pools do not outlive the run.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int

	client *http.Client
	logger *log.Logger
}

// New creates an HTTP fetcher with its own pooled client.
func New(timeout time.Duration, maxChars int) *Fetch {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetch{
		Timeout:  timeout,
		MaxChars: maxChars,
		client:   &http.Client{Timeout: timeout, Transport: &http.Transport{}},
		logger:   log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

// Exec downloads and converts one URL, time-boxed to the fetch
// timeout. Failures are logged and yield an empty-content document the
// caller must drop; errors are reserved for invalid input.
func (f *Fetch) Exec(ctx context.Context, rawURL string) (models.Document, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Document{}, errInvalidURL
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.logger.Printf("fetch failed %s: %v", rawURL, err)
		return models.Document{URL: rawURL}, nil
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Printf("fetch failed %s: %v", rawURL, err)
		return models.Document{URL: rawURL}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Printf("fetch failed %s: HTTP %d", rawURL, resp.StatusCode)
		return models.Document{URL: rawURL, Status: resp.StatusCode}, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Printf("fetch failed %s: %v", rawURL, err)
		return models.Document{URL: rawURL, Status: resp.StatusCode}, nil
	}

	pageURL, _ := url.Parse(rawURL)
	ext := convert.ExtensionHint(pageURL, resp.Header.Get("Content-Type"))
	content, err := convert.Convert(raw, ext, pageURL)
	if err != nil {
		content = convert.FallbackClean(raw)
	}

	return models.Document{
		URL:     rawURL,
		Content: convert.Truncate(content, f.MaxChars),
		Status:  resp.StatusCode,
	}, nil
}

// Close releases pooled connections.
func (f *Fetch) Close() {
	f.client.CloseIdleConnections()
}

var errInvalidURL = errors.New("invalid url")
