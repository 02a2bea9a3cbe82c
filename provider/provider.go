// Package provider defines the language model interface used by the
// deep search pipeline.
package provider

import (
	"context"
	"encoding/json"
	"errors"
)

// Request is a single synthesis or planning call to a language model.
type Request struct {
	Model  string
	System string
	Prompt string
	// Format, when set, is a JSON Schema the response must conform to.
	// It routes the call to the chat endpoint with constrained decoding.
	Format json.RawMessage
	// Temperature overrides the provider default when non-nil.
	Temperature *float64
}

// Provider is the interface all LLM implementations must satisfy.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrModelNotFound is returned when the serving endpoint reports that
// the requested model is not available.
var ErrModelNotFound = errors.New("model not found")
