package deepsearch

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/deepsearch/tools/web_fetch"
)

// fetchAll retrieves every URL concurrently and scores the pages that
// came back with content. The whole batch is bounded by twice the
// per-page timeout so one slow host cannot stall the run; whatever
// finished before the deadline is returned.
func fetchAll(ctx context.Context, fetcher web_fetch.WebFetcher, urls []string, keywords []string, perPage time.Duration, onFetch func(ok bool)) map[string]scoredDocument {
	batchCtx, cancel := context.WithTimeout(ctx, 2*perPage)
	defer cancel()

	type fetched struct {
		url string
		doc scoredDocument
		ok  bool
	}

	results := make(chan fetched, len(urls))
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			doc, err := fetcher.Exec(batchCtx, u)
			if err != nil || doc.Content == "" {
				results <- fetched{url: u}
				return
			}
			results <- fetched{
				url: u,
				doc: scoredDocument{Document: doc, Relevance: Score(doc.Content, keywords)},
				ok:  true,
			}
		}(u)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	docs := make(map[string]scoredDocument, len(urls))
	for r := range results {
		if onFetch != nil {
			onFetch(r.ok)
		}
		if r.ok {
			docs[r.url] = r.doc
		}
	}
	return docs
}
