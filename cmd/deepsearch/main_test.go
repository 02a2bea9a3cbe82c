package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/deepsearch/internal/deepsearch"
	searchmodels "github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
)

func TestLoadSchemaInline(t *testing.T) {
	raw, err := loadSchema(`{"type": "object"}`)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type": "object"}` {
		t.Fatalf("unexpected schema: %s", raw)
	}
}

func TestLoadSchemaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte(`{"type": "array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	raw, err := loadSchema("@" + path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "array") {
		t.Fatalf("unexpected schema: %s", raw)
	}
}

func TestLoadSchemaRejectsInvalidJSON(t *testing.T) {
	if _, err := loadSchema("{broken"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadSchemaEmpty(t *testing.T) {
	raw, err := loadSchema("  ")
	if err != nil || raw != nil {
		t.Fatalf("expected nil schema, got %s (%v)", raw, err)
	}
}

func TestPrintResultSections(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, deepsearch.Result{
		ID:     "id",
		Answer: "The answer.",
		Sources: []searchmodels.Result{
			{Title: "Doc", URL: "http://doc"},
			{URL: "http://untitled"},
		},
		Plan: []deepsearch.PlanStep{
			{Query: "sub question", NumResults: 3, Keywords: []string{"a", "b"}},
		},
		Elapsed: 1500 * time.Millisecond,
	})
	out := buf.String()
	for _, want := range []string{
		"ANSWER\nThe answer.",
		"SEARCH PLAN\n1. sub question (results: 3, keywords: a, b)",
		"SOURCES\n- Doc (http://doc)\n- http://untitled",
		"Took 1.5s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}
