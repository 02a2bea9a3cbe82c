package duckduckgo

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
)

// scrape pulls results out of the public HTML results page. It is the
// last resort when the API keeps throttling; an approximate result is
// better than none. Failures yield an empty slice.
func (s *Search) scrape(ctx context.Context, q string, k int) []models.Result {
	endpoint := s.scrapeURL + "?q=" + url.QueryEscape(q) + "&kl=us-en"
	body, err := s.get(ctx, endpoint, scrapeUserAgent)
	if err != nil {
		s.logger.Printf("HTML scrape failed: %v", err)
		return nil
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		s.logger.Printf("HTML scrape failed: %v", err)
		return nil
	}

	var results []models.Result
	for _, node := range findAll(doc, byClass("result"), k) {
		titleBlock := findFirst(node, byClass("result__title"))
		if titleBlock == nil {
			continue
		}
		titleLink := findFirst(titleBlock, byTag("a"))
		urlElem := findFirst(node, byClass("result__url"))
		if titleLink == nil || urlElem == nil {
			continue
		}

		href := attr(urlElem, "href")
		if href == "" {
			href = attr(titleLink, "href")
		}
		title := strings.TrimSpace(text(titleLink))
		if href == "" || title == "" {
			continue
		}

		snippet := ""
		if snippetElem := findFirst(node, byClass("result__snippet")); snippetElem != nil {
			snippet = strings.TrimSpace(text(snippetElem))
		}

		results = append(results, models.Result{Title: title, URL: href, Snippet: snippet})
	}
	return results
}

type nodePred func(*html.Node) bool

func byTag(name string) nodePred {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

// byClass matches elements carrying the class token exactly, so
// "result" does not match "result__snippet".
func byClass(class string) nodePred {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, token := range strings.Fields(attr(n, "class")) {
			if token == class {
				return true
			}
		}
		return false
	}
}

func findAll(root *html.Node, pred nodePred, limit int) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if limit > 0 && len(out) >= limit {
			return
		}
		if pred(n) {
			out = append(out, n)
			return // do not descend into a match
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, pred nodePred) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
