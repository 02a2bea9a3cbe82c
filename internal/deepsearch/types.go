package deepsearch

import (
	"encoding/json"
	"time"

	fetchmodels "github.com/mohammad-safakhou/deepsearch/tools/web_fetch/models"
	searchmodels "github.com/mohammad-safakhou/deepsearch/tools/web_search/models"
)

// PlanStep is one decomposed sub-query with its desired result count
// and keyword hints.
type PlanStep struct {
	Query      string   `json:"question"`
	NumResults int      `json:"num_results"`
	Keywords   []string `json:"relevance_keywords"`
}

// Options control a single deep search run.
type Options struct {
	// Model overrides the configured default model.
	Model string
	// ResultCount is the number of search results when auto-planning
	// is off.
	ResultCount int
	// AutoPlan lets the model generate sub-queries.
	AutoPlan bool
	// Schema, when set, is a JSON Schema the answer must conform to.
	Schema json.RawMessage
}

// Result is the outcome of a deep search run. Answer carries failure
// explanations too; Plan is nil unless auto-planning ran.
type Result struct {
	ID      string                `json:"id"`
	Answer  string                `json:"answer"`
	Sources []searchmodels.Result `json:"sources"`
	Plan    []PlanStep            `json:"plan,omitempty"`
	Elapsed time.Duration         `json:"elapsed"`
}

// scoredDocument is a fetched document with its keyword relevance,
// used only for ranking.
type scoredDocument struct {
	fetchmodels.Document
	Relevance float64
}

// state is the orchestrator's position in the pipeline.
type state string

const (
	statePlanning     state = "PLANNING"
	stateSearching    state = "SEARCHING"
	stateFetching     state = "FETCHING"
	stateRanking      state = "RANKING"
	stateSynthesizing state = "SYNTHESIZING"
	stateDone         state = "DONE"
)

// noDocumentsAnswer is returned when nothing could be fetched; the
// pipeline skips synthesis entirely in that case.
const noDocumentsAnswer = "I don't know - no documents could be retrieved."
