package deepsearch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/deepsearch/internal/helpers"
)

// dedupeURLs removes duplicate URLs preserving first-seen order.
func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// aggregate orders the fetched documents for synthesis. The URL
// sequence is deduped, URLs that never produced a document are
// dropped, and when the plan carried keywords the rest is
// stable-sorted by relevance descending so ties keep fetch order.
func aggregate(urls []string, docs map[string]scoredDocument, keywordsPresent bool) []scoredDocument {
	var ordered []scoredDocument
	for _, u := range dedupeURLs(urls) {
		if d, ok := docs[u]; ok {
			ordered = append(ordered, d)
		}
	}
	if keywordsPresent {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Relevance > ordered[j].Relevance
		})
	}
	return ordered
}

// buildContext concatenates the documents into the synthesis context,
// shortening each body to the content budget at a word boundary.
func buildContext(docs []scoredDocument, maxContentLength int) string {
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, fmt.Sprintf("URL: %s\n\n%s", d.URL, helpers.Shorten(d.Content, maxContentLength)))
	}
	return strings.Join(blocks, "\n\n")
}
