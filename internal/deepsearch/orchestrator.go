package deepsearch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/internal/telemetry"
	"github.com/mohammad-safakhou/deepsearch/provider"
	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
)

// Orchestrator drives the whole pipeline for a question: plan,
// search, fetch, rank, synthesize. It holds only long-lived pieces;
// the fetcher is constructed per run and closed when the run ends.
type Orchestrator struct {
	cfg        *config.Config
	searcher   web_search.WebSearcher
	provider   provider.Provider
	newFetcher func(config.FetchConfig) (web_fetch.WebFetcher, error)
	telemetry  *telemetry.Telemetry
	logger     *log.Logger
}

// NewOrchestrator wires the pipeline from configuration.
func NewOrchestrator(cfg *config.Config, searcher web_search.WebSearcher, p provider.Provider, t *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		searcher:   searcher,
		provider:   p,
		newFetcher: web_fetch.NewWebFetcher,
		telemetry:  t,
		logger:     log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags),
	}
}

// DeepSearch runs the full pipeline. It never returns an error to the
// caller: every failure mode ends with an answer string explaining
// what happened, so callers can always render a Result.
func (o *Orchestrator) DeepSearch(ctx context.Context, question string, opts Options) Result {
	start := time.Now()
	result := Result{ID: uuid.New().String()}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.General.RequestTimeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = o.cfg.LLM.Model
	}
	resultCount := opts.ResultCount
	if resultCount == 0 {
		resultCount = o.cfg.Search.ResultCount
	}

	o.logger.Printf("[%s] run started: %q", result.ID, question)

	o.transition(result.ID, statePlanning)
	planStart := time.Now()
	pl := newPlanner(o.provider, model, o.cfg.Planner.MaxSteps)
	steps := pl.Plan(ctx, question, resultCount, opts.AutoPlan)
	o.telemetry.RecordStage(string(statePlanning), time.Since(planStart))
	if opts.AutoPlan {
		result.Plan = steps
	}

	o.transition(result.ID, stateSearching)
	searchStart := time.Now()
	var urls []string
	var sources []searchmodels.Result
	var keywords []string
	for _, step := range steps {
		hits, err := o.searcher.Search(ctx, step.Query, step.NumResults)
		o.telemetry.RecordSearch(o.cfg.Search.Provider, len(hits), err)
		if err != nil {
			o.logger.Printf("[%s] search %q failed: %v", result.ID, step.Query, err)
			continue
		}
		for _, hit := range hits {
			urls = append(urls, hit.URL)
			sources = append(sources, hit)
		}
		keywords = append(keywords, step.Keywords...)
	}
	urls = dedupeURLs(urls)
	o.telemetry.RecordStage(string(stateSearching), time.Since(searchStart))
	o.logger.Printf("[%s] %d unique url(s) to fetch", result.ID, len(urls))

	o.transition(result.ID, stateFetching)
	fetchStart := time.Now()
	docs := o.fetchDocuments(ctx, urls, keywords)
	o.telemetry.RecordStage(string(stateFetching), time.Since(fetchStart))

	if len(docs) == 0 {
		o.logger.Printf("[%s] no documents retrieved, skipping synthesis", result.ID)
		result.Answer = noDocumentsAnswer
		result.Sources = []searchmodels.Result{}
		result.Elapsed = time.Since(start)
		o.transition(result.ID, stateDone)
		return result
	}

	o.transition(result.ID, stateRanking)
	rankStart := time.Now()
	ordered := aggregate(urls, docs, len(keywords) > 0)
	docContext := buildContext(ordered, o.cfg.Fetch.MaxContentLength)
	o.telemetry.RecordStage(string(stateRanking), time.Since(rankStart))

	o.transition(result.ID, stateSynthesizing)
	synthStart := time.Now()
	answer, err := synthesize(ctx, o.provider, model, question, docContext, opts.Schema)
	o.telemetry.RecordSynthesis(err == nil, time.Since(synthStart))
	if err != nil {
		o.logger.Printf("[%s] synthesis failed: %v", result.ID, err)
		result.Answer = fmt.Sprintf("Error generating answer: %s", err)
		result.Sources = []searchmodels.Result{}
		result.Elapsed = time.Since(start)
		o.transition(result.ID, stateDone)
		return result
	}

	result.Answer = answer
	result.Sources = sourcesFor(ordered, sources)
	result.Elapsed = time.Since(start)
	o.transition(result.ID, stateDone)
	o.logger.Printf("[%s] run finished in %v", result.ID, result.Elapsed.Round(time.Millisecond))
	return result
}

// fetchDocuments builds a per-run fetcher, fans out over the URLs and
// tears the fetcher down again.
func (o *Orchestrator) fetchDocuments(ctx context.Context, urls []string, keywords []string) map[string]scoredDocument {
	if len(urls) == 0 {
		return nil
	}
	fetcher, err := o.newFetcher(o.cfg.Fetch)
	if err != nil {
		o.logger.Printf("fetcher unavailable: %v", err)
		return nil
	}
	defer fetcher.Close()
	return fetchAll(ctx, fetcher, urls, keywords, o.cfg.Fetch.Timeout, o.telemetry.RecordFetch)
}

// sourcesFor returns the search hits for the documents that made it
// into the context, in context order.
func sourcesFor(ordered []scoredDocument, hits []searchmodels.Result) []searchmodels.Result {
	byURL := make(map[string]searchmodels.Result, len(hits))
	for _, h := range hits {
		if _, ok := byURL[h.URL]; !ok {
			byURL[h.URL] = h
		}
	}
	out := make([]searchmodels.Result, 0, len(ordered))
	for _, d := range ordered {
		if h, ok := byURL[d.URL]; ok {
			out = append(out, h)
		}
	}
	return out
}

func (o *Orchestrator) transition(id string, s state) {
	o.logger.Printf("[%s] state=%s", id, s)
}
