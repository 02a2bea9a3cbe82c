package helpers

import "strings"

const shortenPlaceholder = " [...]"

// Shorten collapses whitespace in s and truncates it to at most width
// characters, cutting at a word boundary and appending a placeholder
// when text was dropped.
func Shorten(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= width {
		return s
	}
	if width <= len(shortenPlaceholder) {
		return strings.TrimSpace(shortenPlaceholder)
	}
	cut := s[:width-len(shortenPlaceholder)]
	if sp := strings.LastIndexByte(cut, ' '); sp > 0 {
		cut = cut[:sp]
	}
	return cut + shortenPlaceholder
}
