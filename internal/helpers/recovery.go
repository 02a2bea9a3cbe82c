// Package helpers contains small utilities for cleaning up language
// model output and preparing text for prompts.
package helpers

import (
	"errors"
	"strings"
)

// ArrayStrategy attempts to pull a JSON array out of raw model text.
// It reports the extracted array and whether the strategy matched.
type ArrayStrategy func(s string) (string, bool)

// ArrayStrategies is the ordered list of recovery strategies applied to
// model output that failed to parse as JSON directly: a ```json fenced
// block, any fenced block, then the first balanced bare array.
var ArrayStrategies = []ArrayStrategy{
	fromFencedBlock("```json"),
	fromFencedBlock("```"),
	fromBareArray,
}

// ExtractJSONArray recovers a JSON array embedded in raw model text,
// trying each strategy in order. First match wins.
func ExtractJSONArray(s string) (string, error) {
	s = trimBOM(strings.TrimSpace(s))
	if s == "" {
		return "", errors.New("empty input")
	}
	for _, strategy := range ArrayStrategies {
		if out, ok := strategy(s); ok {
			return out, nil
		}
	}
	return "", errors.New("no JSON array found")
}

// fromFencedBlock matches a fenced code block opened by the given
// marker and returns the first balanced array inside it.
func fromFencedBlock(marker string) ArrayStrategy {
	return func(s string) (string, bool) {
		idx := strings.Index(s, marker)
		if idx == -1 {
			return "", false
		}
		rest := s[idx+len(marker):]
		// Skip the remainder of the opening fence line.
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			rest = rest[nl+1:]
		}
		end := strings.Index(rest, "```")
		if end == -1 {
			return "", false
		}
		return fromBareArray(rest[:end])
	}
}

// fromBareArray returns the first balanced [...] value in s.
func fromBareArray(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '[' {
			if out, ok := balancedFrom(s, i); ok {
				return out, true
			}
		}
	}
	return "", false
}

// balancedFrom extracts a balanced JSON value starting at startIdx,
// handling nested brackets, strings and escape sequences.
func balancedFrom(s string, startIdx int) (string, bool) {
	start := s[startIdx]
	if start != '{' && start != '[' {
		return "", false
	}

	var (
		stack    []byte
		inString bool
		escape   bool
	)
	push := func(b byte) { stack = append(stack, b) }
	popMatches := func(b byte) bool {
		if len(stack) == 0 {
			return false
		}
		top := stack[len(stack)-1]
		if (top == '{' && b == '}') || (top == '[' && b == ']') {
			stack = stack[:len(stack)-1]
			return true
		}
		return false
	}

	push(start)
	for i := startIdx + 1; i < len(s); i++ {
		c := s[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch c {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			push(c)
		case '}', ']':
			if !popMatches(c) {
				return "", false
			}
			if len(stack) == 0 {
				return s[startIdx : i+1], true
			}
		}
	}
	return "", false
}

// trimBOM removes an optional UTF-8 BOM.
func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
