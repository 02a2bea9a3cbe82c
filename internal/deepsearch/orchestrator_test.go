package deepsearch

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch"
	fetchmodels "github.com/mohammad-safakhou/deepsearch/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
)

type stubSearcher struct {
	hits    []searchmodels.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, q string, k int) ([]searchmodels.Result, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.hits) {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

type stubFetcher struct {
	pages  map[string]string
	closed bool
}

func (f *stubFetcher) Exec(_ context.Context, url string) (fetchmodels.Document, error) {
	return fetchmodels.Document{URL: url, Content: f.pages[url], Status: 200}, nil
}

func (f *stubFetcher) Close() { f.closed = true }

func testConfig() *config.Config {
	return &config.Config{
		General: config.GeneralConfig{RequestTimeout: 10 * time.Second},
		LLM:     config.LLMConfig{Model: "llama3.2"},
		Search:  config.SearchConfig{Provider: "duckduckgo", ResultCount: 3},
		Fetch:   config.FetchConfig{Fetcher: "http", Timeout: 2 * time.Second, MaxContentLength: 8000},
		Planner: config.PlannerConfig{MaxSteps: 5},
	}
}

func testOrchestrator(cfg *config.Config, searcher *stubSearcher, p *stubProvider, fetcher *stubFetcher) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		searcher: searcher,
		provider: p,
		newFetcher: func(config.FetchConfig) (web_fetch.WebFetcher, error) {
			return fetcher, nil
		},
		telemetry: telemetry.NewTelemetry(config.TelemetryConfig{Enabled: false}),
		logger:    log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}
}

func TestDeepSearchHappyPath(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{
		{Title: "One", URL: "http://one", Snippet: "s1"},
		{Title: "Two", URL: "http://two", Snippet: "s2"},
	}}
	fetcher := &stubFetcher{pages: map[string]string{
		"http://one": "go was designed at google",
		"http://two": "unrelated text",
	}}
	p := &stubProvider{response: "Go was designed at Google."}
	o := testOrchestrator(testConfig(), searcher, p, fetcher)

	res := o.DeepSearch(context.Background(), "who designed go", Options{})
	if res.ID == "" {
		t.Fatal("expected a run ID")
	}
	if res.Answer != "Go was designed at Google." {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(res.Sources))
	}
	if res.Plan != nil {
		t.Fatalf("plan should be nil without auto-planning, got %+v", res.Plan)
	}
	if !fetcher.closed {
		t.Fatal("fetcher was not closed")
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "who designed go" {
		t.Fatalf("unexpected search queries: %v", searcher.queries)
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected single synthesis call, got %d", len(p.requests))
	}
	prompt := p.requests[0].Prompt
	if !strings.Contains(prompt, "# QUESTION\nwho designed go") {
		t.Fatalf("question missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "URL: http://one") || !strings.Contains(prompt, "URL: http://two") {
		t.Fatalf("documents missing from prompt:\n%s", prompt)
	}
}

func TestDeepSearchNoDocuments(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{{Title: "One", URL: "http://one"}}}
	fetcher := &stubFetcher{pages: map[string]string{}} // every fetch comes back empty
	p := &stubProvider{response: "should never be called"}
	o := testOrchestrator(testConfig(), searcher, p, fetcher)

	res := o.DeepSearch(context.Background(), "q", Options{})
	if res.Answer != noDocumentsAnswer {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", res.Sources)
	}
	if len(p.requests) != 0 {
		t.Fatal("synthesis must be skipped when nothing was retrieved")
	}
}

func TestDeepSearchSynthesisError(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{{Title: "One", URL: "http://one"}}}
	fetcher := &stubFetcher{pages: map[string]string{"http://one": "content"}}
	p := &stubProvider{err: errors.New("model overloaded")}
	o := testOrchestrator(testConfig(), searcher, p, fetcher)

	res := o.DeepSearch(context.Background(), "q", Options{})
	if res.Answer != "Error generating answer: model overloaded" {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("expected empty sources on synthesis failure, got %+v", res.Sources)
	}
}

func TestDeepSearchSearchFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("provider down")}
	fetcher := &stubFetcher{}
	p := &stubProvider{}
	o := testOrchestrator(testConfig(), searcher, p, fetcher)

	res := o.DeepSearch(context.Background(), "q", Options{})
	if res.Answer != noDocumentsAnswer {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
}

func TestDeepSearchAutoPlanPopulatesPlan(t *testing.T) {
	searcher := &stubSearcher{hits: []searchmodels.Result{{Title: "One", URL: "http://one"}}}
	fetcher := &stubFetcher{pages: map[string]string{"http://one": "go history content"}}
	p := &stubProvider{response: `[{"question": "go history", "num_results": 1, "relevance_keywords": ["go"]}]`}
	o := testOrchestrator(testConfig(), searcher, p, fetcher)

	res := o.DeepSearch(context.Background(), "tell me about go", Options{AutoPlan: true})
	if len(res.Plan) != 1 || res.Plan[0].Query != "go history" {
		t.Fatalf("unexpected plan: %+v", res.Plan)
	}
	// First generate call plans, second synthesizes.
	if len(p.requests) != 2 {
		t.Fatalf("expected 2 generate calls, got %d", len(p.requests))
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "go history" {
		t.Fatalf("unexpected queries: %v", searcher.queries)
	}
}
