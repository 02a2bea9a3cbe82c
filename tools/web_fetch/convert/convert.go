// Package convert turns raw downloaded bytes into text. HTML goes
// through readability extraction; plain-text formats pass through;
// anything else is reported as unsupported so callers can fall back to
// a structural HTML reduction.
package convert

import (
	"bytes"
	"errors"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ErrUnsupportedFormat signals a payload no converter understands.
var ErrUnsupportedFormat = errors.New("unsupported format")

var htmlExts = map[string]bool{
	".html": true, ".htm": true, ".xhtml": true, ".shtml": true, ".asp": true, ".aspx": true, ".php": true,
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".csv": true, ".json": true, ".xml": true, ".log": true, ".yaml": true, ".yml": true,
}

// ExtensionHint picks the filename extension used to choose a
// converter: the URL path suffix, else an extension derived from the
// MIME type, else ".html".
func ExtensionHint(pageURL *url.URL, contentType string) string {
	if pageURL != nil {
		if ext := path.Ext(pageURL.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
	}
	return ".html"
}

// Convert maps raw bytes plus an extension hint to text. The source
// URL helps readability resolve relative references.
func Convert(raw []byte, ext string, pageURL *url.URL) (string, error) {
	switch {
	case htmlExts[ext]:
		article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(article.TextContent), nil
	case textExts[ext]:
		return strings.TrimSpace(string(raw)), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "svg": true,
}

// FallbackClean is the structural HTML reduction used when conversion
// is unsupported or fails: drop script/style/iframe/svg/noscript
// subtrees, join the remaining text, collapse whitespace.
func FallbackClean(raw []byte) string {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate caps text at max characters. A hard cap protecting the
// downstream context budget.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
