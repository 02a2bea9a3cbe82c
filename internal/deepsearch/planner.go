package deepsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/deepsearch/internal/helpers"
	"github.com/mohammad-safakhou/deepsearch/provider"
	"github.com/mohammad-safakhou/deepsearch/utils"
)

const plannerSystemPrompt = `You are a research planner. Decompose the user's question into focused web search queries.
For each query decide how many results are needed and which keywords indicate a relevant document.
Respond with a JSON array only, no prose.`

// plannerSchema constrains the model output to an array of plan steps.
// TODO: maxItems is 2 but planner.max_steps defaults to 5; confirm
// which bound is intended and align them.
var plannerSchema = json.RawMessage(`{
  "type": "array",
  "minItems": 1,
  "maxItems": 2,
  "items": {
    "type": "object",
    "properties": {
      "question": {"type": "string"},
      "num_results": {"type": "integer", "minimum": 1, "maximum": 10},
      "relevance_keywords": {"type": "array", "items": {"type": "string"}}
    },
    "required": ["question", "num_results", "relevance_keywords"]
  }
}`)

// planner turns a question into search steps. With auto-planning off
// it emits a single literal step; with it on it asks the model and
// repairs whatever comes back. Plan never fails: any unusable model
// output degrades to the single literal step.
type planner struct {
	provider provider.Provider
	model    string
	maxSteps int
	logger   *log.Logger
}

func newPlanner(p provider.Provider, model string, maxSteps int) *planner {
	return &planner{
		provider: p,
		model:    model,
		maxSteps: maxSteps,
		logger:   log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Plan produces the search steps for a question.
func (p *planner) Plan(ctx context.Context, question string, numResults int, auto bool) []PlanStep {
	if !auto {
		return []PlanStep{{Query: question, NumResults: numResults}}
	}

	fallback := []PlanStep{{Query: question, NumResults: 5, Keywords: []string{}}}

	userPrompt := fmt.Sprintf("Plan web searches to answer the following question.\n\nQuestion: %s", question)
	raw, err := p.provider.Generate(ctx, provider.Request{
		Model:  p.model,
		System: plannerSystemPrompt,
		Prompt: userPrompt,
		Format: plannerSchema,
	})
	if err != nil {
		p.logger.Printf("planning failed, using question verbatim: %v", err)
		return fallback
	}

	steps, err := parsePlan(raw, p.maxSteps)
	if err != nil {
		p.logger.Printf("unusable plan from model, using question verbatim: %v", err)
		return fallback
	}
	p.logger.Printf("planned %d search step(s)", len(steps))
	return steps
}

// parsePlan recovers a step list from raw model output. The text is
// tried as JSON directly, then via the fenced-block and bare-array
// extraction strategies; a string result is decoded once more to
// handle double-encoded arrays.
func parsePlan(raw string, maxSteps int) ([]PlanStep, error) {
	text := strings.TrimSpace(raw)
	if !json.Valid([]byte(text)) {
		extracted, err := helpers.ExtractJSONArray(text)
		if err != nil {
			return nil, err
		}
		text = extracted
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if s, ok := decoded.(string); ok {
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("decoding double-encoded plan: %w", err)
		}
	}

	items, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("plan is not an array")
	}

	var steps []PlanStep
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		step := coerceStep(obj)
		if step.Query == "" {
			continue
		}
		steps = append(steps, step)
		if len(steps) == maxSteps {
			break
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan has no usable steps")
	}
	return steps, nil
}

// coerceStep builds a step from a loosely-typed object, tolerating
// numbers-as-strings and clamping the result count to [1,10].
func coerceStep(obj map[string]any) PlanStep {
	step := PlanStep{
		Query:      strings.TrimSpace(utils.Str(obj["question"])),
		NumResults: 3,
	}
	if v, ok := obj["num_results"]; ok {
		switch n := v.(type) {
		case float64:
			step.NumResults = int(n)
		case string:
			var f float64
			if _, err := fmt.Sscanf(strings.TrimSpace(n), "%f", &f); err == nil {
				step.NumResults = int(f)
			}
		}
	}
	if step.NumResults < 1 {
		step.NumResults = 1
	}
	if step.NumResults > 10 {
		step.NumResults = 10
	}
	if kws, ok := obj["relevance_keywords"].([]any); ok {
		for _, kw := range kws {
			if s := strings.TrimSpace(utils.Str(kw)); s != "" {
				step.Keywords = append(step.Keywords, s)
			}
		}
	}
	return step
}
