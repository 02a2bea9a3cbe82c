package web_search

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search/brave"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search/duckduckgo"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search/serper"
)

// WebSearcher executes one query and returns up to k results.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	DuckDuckGoProvider Provider = "duckduckgo"
	BraveProvider      Provider = "brave"
	SerperProvider     Provider = "serper"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// NewWebSearcher builds the configured search provider. DuckDuckGo is
// the default and the only one with rate-limit resilience built in;
// the keyed providers are straight API clients.
func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	switch Provider(cfg.Provider) {
	case DuckDuckGoProvider:
		return duckduckgo.New(cfg), nil
	case BraveProvider:
		return brave.Search{ApiKey: cfg.BraveAPIKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: cfg.SerperAPIKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
