package web_fetch

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/deepsearch/config"
	chromedpfetch "github.com/mohammad-safakhou/deepsearch/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch/models"
)

// WebFetcher downloads one URL and converts it to text. Close releases
// any per-run resources (connection pools).
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Document, error)
	Close()
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

// NewWebFetcher builds a fetcher for a single pipeline run.
func NewWebFetcher(cfg config.FetchConfig) (WebFetcher, error) {
	switch FetcherType(cfg.Fetcher) {
	case HTTPFetcherType:
		return httpfetch.New(cfg.Timeout, cfg.MaxContentLength), nil
	case ChromedpFetcherType:
		return chromedpfetch.New(cfg.Timeout, cfg.MaxContentLength), nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
