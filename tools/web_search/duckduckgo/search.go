// Package duckduckgo implements the default web search provider. The
// primary path uses DuckDuckGo's JSON results endpoint; because that
// endpoint throttles aggressively, the client layers rate-limit
// backoff, a circuit breaker, and an HTML-scrape fallback on top.
// Search never returns an error: total failure yields empty results.
package duckduckgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/internal/breaker"
	"github.com/mohammad-safakhou/deepsearch/internal/helpers"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
)

const (
	defaultHomeURL    = "https://duckduckgo.com/"
	defaultResultsURL = "https://links.duckduckgo.com/d.js"
	defaultScrapeURL  = "https://duckduckgo.com/html/"

	apiUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	scrapeUserAgent = "Mozilla/5.0 (compatible; SearchBot/1.0)"
)

// errRateLimited marks throttling by the provider. It is expected
// under load and deliberately does not count against breaker health.
var errRateLimited = errors.New("rate limited")

var vqdPattern = regexp.MustCompile(`vqd=['"]?([\d-]+)['"]?`)

var scrapeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "deepsearch_search_fallbacks_total",
	Help: "Searches that fell back to the HTML scrape path.",
})

// Search is the resilient DuckDuckGo client. Safe for sequential use;
// the breaker it owns is shared across all calls in the process.
type Search struct {
	client      *http.Client
	breaker     *breaker.Breaker
	attempts    int
	baseBackoff time.Duration
	logger      *log.Logger

	homeURL    string
	resultsURL string
	scrapeURL  string

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a client from search configuration.
func New(cfg config.SearchConfig) *Search {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 5
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Search{
		client:      &http.Client{Timeout: 15 * time.Second},
		breaker:     breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout),
		attempts:    attempts,
		baseBackoff: backoff,
		logger:      log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
		homeURL:     defaultHomeURL,
		resultsURL:  defaultResultsURL,
		scrapeURL:   defaultScrapeURL,
		sleep:       sleepCtx,
		jitter:      rand.Float64,
	}
}

// Search runs one query. It tries the primary API with backoff under
// the circuit breaker, then falls back to scraping the public results
// page. Failures are logged, never propagated.
func (s *Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if !s.breaker.CanCall() {
		s.logger.Printf("circuit breaker open, skipping search for %q", q)
		return nil, nil
	}

	for attempt := 0; attempt < s.attempts; attempt++ {
		results, err := s.searchAPI(ctx, q, k)
		if err == nil {
			s.breaker.RecordSuccess()
			return results, nil
		}
		if errors.Is(err, errRateLimited) {
			base := float64(s.baseBackoff) / float64(time.Second)
			backoff := time.Duration((base*math.Pow(2, float64(attempt)) + s.jitter()) * float64(time.Second))
			s.logger.Printf("throttled (attempt %d/%d); sleeping %s", attempt+1, s.attempts, backoff.Round(100*time.Millisecond))
			if serr := s.sleep(ctx, backoff); serr != nil {
				return nil, nil
			}
			continue
		}
		s.breaker.RecordFailure()
		if attempt == s.attempts-1 {
			s.logger.Printf("search failed after %d attempts: %v", s.attempts, err)
			break
		}
		if serr := s.sleep(ctx, s.baseBackoff*time.Duration(attempt+1)); serr != nil {
			return nil, nil
		}
	}

	s.logger.Printf("falling back to HTML scrape for %q", q)
	scrapeFallbacks.Inc()
	return s.scrape(ctx, q, k), nil
}

// searchAPI runs the two-step primary flow: obtain a vqd token from
// the home page, then fetch the JSON result records.
func (s *Search) searchAPI(ctx context.Context, q string, k int) ([]models.Result, error) {
	vqd, err := s.fetchVQD(ctx, q)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s?q=%s&vqd=%s&kl=us-en", s.resultsURL, url.QueryEscape(q), url.QueryEscape(vqd))
	body, err := s.get(ctx, endpoint, apiUserAgent)
	if err != nil {
		return nil, err
	}

	return parseRecords(body, k)
}

func (s *Search) fetchVQD(ctx context.Context, q string) (string, error) {
	body, err := s.get(ctx, s.homeURL+"?q="+url.QueryEscape(q), apiUserAgent)
	if err != nil {
		return "", err
	}
	m := vqdPattern.FindStringSubmatch(body)
	if m == nil {
		// DuckDuckGo withholds the token when it is throttling.
		return "", errRateLimited
	}
	return m[1], nil
}

func (s *Search) get(ctx context.Context, endpoint, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusAccepted:
		return "", errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("duckduckgo HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// parseRecords extracts the result records embedded in the d.js
// payload. Records carry t/u/a fields (title, url, abstract);
// navigation entries without a url are skipped.
func parseRecords(body string, k int) ([]models.Result, error) {
	arr, err := helpers.ExtractJSONArray(body)
	if err != nil {
		return nil, fmt.Errorf("malformed results payload: %w", err)
	}

	var records []struct {
		Title    string `json:"t"`
		URL      string `json:"u"`
		Abstract string `json:"a"`
	}
	if err := json.Unmarshal([]byte(arr), &records); err != nil {
		return nil, fmt.Errorf("malformed results payload: %w", err)
	}

	var out []models.Result
	for _, r := range records {
		if r.URL == "" {
			continue
		}
		out = append(out, models.Result{
			Title:   stripTags(r.Title),
			URL:     r.URL,
			Snippet: stripTags(r.Abstract),
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
