// Package chromedp fetches pages through a headless browser for sites
// that only render content client-side, then feeds the rendered HTML
// through the same conversion path as the plain HTTP fetcher.
package chromedp

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch/convert"
	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch/models"
)

// Fetch renders one URL per call in a fresh browser context.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int

	logger *log.Logger
}

// New creates a rendered-page fetcher.
func New(timeout time.Duration, maxChars int) *Fetch {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetch{
		Timeout:  timeout,
		MaxChars: maxChars,
		logger:   log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

// Exec renders and converts one URL, time-boxed to the fetch timeout.
// Failures are logged and yield an empty-content document.
func (f *Fetch) Exec(ctx context.Context, rawURL string) (models.Document, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Document{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	page, err := fetchHTML(ctx, rawURL)
	if err != nil {
		f.logger.Printf("render failed %s: %v", rawURL, err)
		return models.Document{URL: rawURL}, nil
	}

	pageURL, _ := url.Parse(rawURL)
	content, err := convert.Convert([]byte(page), ".html", pageURL)
	if err != nil {
		content = convert.FallbackClean([]byte(page))
	}

	return models.Document{
		URL:     rawURL,
		Content: convert.Truncate(content, f.MaxChars),
		Status:  200,
	}, nil
}

// Close is a no-op; browser contexts are per call.
func (f *Fetch) Close() {}

func fetchHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var page string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	return page, err
}
