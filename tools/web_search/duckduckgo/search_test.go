package duckduckgo

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"testing"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/internal/breaker"
)

const resultsPayload = `DDG.pageLayout.load('d',[` +
	`{"t":"<b>Paris</b> - Wikipedia","u":"https://en.wikipedia.org/wiki/Paris","a":"Paris is the <b>capital</b> of France."},` +
	`{"n":"/d.js?q=next"},` +
	`{"t":"France","u":"https://example.com/france","a":"A country in Europe."}` +
	`]);`

const scrapePage = `<html><body>
<div class="result results_links">
  <h2 class="result__title"><a rel="nofollow" href="https://one.example/">First result</a></h2>
  <a class="result__url" href="https://one.example/page">one.example/page</a>
  <a class="result__snippet">First snippet</a>
</div>
<div class="result">
  <h2 class="result__title"><a href="https://two.example/">Second result</a></h2>
  <a class="result__url" href="https://two.example/page">two.example/page</a>
</div>
<div class="result">
  <h2 class="result__title"><a href="">   </a></h2>
</div>
</body></html>`

func newTestSearch(cfg config.SearchConfig) *Search {
	s := New(cfg)
	s.logger = log.New(io.Discard, "", 0)
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	s.jitter = func() float64 { return 0 }
	return s
}

func TestSearchPrimarySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`<script>vqd="4-12345678901234567890";</script>`))
		case "/d.js":
			if r.URL.Query().Get("vqd") != "4-12345678901234567890" {
				t.Errorf("missing vqd token: %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(resultsPayload))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s := newTestSearch(config.SearchConfig{Attempts: 5, BaseBackoff: time.Second})
	s.homeURL = srv.URL + "/"
	s.resultsURL = srv.URL + "/d.js"

	results, err := s.Search(context.Background(), "capital of France", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Paris - Wikipedia" {
		t.Errorf("title = %q, want tags stripped", results[0].Title)
	}
	if results[0].URL != "https://en.wikipedia.org/wiki/Paris" {
		t.Errorf("url = %q", results[0].URL)
	}
	if results[0].Snippet != "Paris is the capital of France." {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestSearchRateLimitedFallsBackToScrape(t *testing.T) {
	primaryCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			primaryCalls++
			w.WriteHeader(http.StatusTooManyRequests)
		case "/html/":
			if r.URL.Query().Get("kl") != "us-en" {
				t.Errorf("missing kl param: %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(scrapePage))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s := newTestSearch(config.SearchConfig{Attempts: 5, BaseBackoff: time.Second})
	s.homeURL = srv.URL + "/"
	s.resultsURL = srv.URL + "/d.js"
	s.scrapeURL = srv.URL + "/html/"

	results, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if primaryCalls != 5 {
		t.Errorf("primary attempts = %d, want 5", primaryCalls)
	}
	if len(results) != 2 {
		t.Fatalf("got %d scrape results, want 2", len(results))
	}
	if results[0].URL != "https://one.example/page" || results[0].Title != "First result" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[0].Snippet != "First snippet" {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	if results[1].Snippet != "" {
		t.Errorf("second snippet should be empty, got %q", results[1].Snippet)
	}

	// Rate limiting must not have touched the breaker.
	if got := s.breaker.State(); got != breaker.StateClosed {
		t.Errorf("breaker state = %s, want closed", got)
	}
}

func TestSearchGenericFailuresTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestSearch(config.SearchConfig{
		Attempts: 5,
		Breaker:  config.BreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute},
	})
	s.homeURL = srv.URL + "/"
	s.resultsURL = srv.URL + "/d.js"
	s.scrapeURL = srv.URL + "/html/"

	results, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
	// 5 generic failures reach the threshold; the breaker is now open
	// and the next call is rejected without a network round-trip.
	if got := s.breaker.State(); got != breaker.StateOpen {
		t.Fatalf("breaker state = %s, want open", got)
	}

	srv.Close()
	results, err = s.Search(context.Background(), "anything", 5)
	if err != nil || len(results) != 0 {
		t.Fatalf("open breaker should yield empty results, got %v, %v", results, err)
	}
}

func TestSearchMissingVQDTreatedAsThrottling(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html/" {
			_, _ = w.Write([]byte(scrapePage))
			return
		}
		calls++
		_, _ = w.Write([]byte(`<html>no token here</html>`))
	}))
	defer srv.Close()

	s := newTestSearch(config.SearchConfig{Attempts: 3})
	s.homeURL = srv.URL + "/"
	s.resultsURL = srv.URL + "/d.js"
	s.scrapeURL = srv.URL + "/html/"

	if _, err := s.Search(context.Background(), "anything", 1); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if calls != 3 {
		t.Errorf("primary attempts = %d, want 3", calls)
	}
	if got := s.breaker.State(); got != breaker.StateClosed {
		t.Errorf("breaker state = %s, want closed", got)
	}
}

func TestParseRecords(t *testing.T) {
	results, err := parseRecords(resultsPayload, 10)
	if err != nil {
		t.Fatalf("parseRecords: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d records, want 2 (navigation entry skipped)", len(results))
	}
	if _, err := parseRecords("no array at all", 10); err == nil {
		t.Fatal("expected an error for a payload without records")
	}
}
