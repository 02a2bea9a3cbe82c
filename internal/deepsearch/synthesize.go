package deepsearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/deepsearch/provider"
)

const synthesisSystemPrompt = `You are a careful research assistant. Answer the question using ONLY the provided documents.
If the documents do not contain the answer, say "I don't know" and state what information is missing.
Do not invent facts that are not in the documents.`

// synthesize asks the model for the final answer grounded in the
// document context. A schema, when present, constrains the output.
func synthesize(ctx context.Context, p provider.Provider, model, question, docContext string, schema json.RawMessage) (string, error) {
	prompt := fmt.Sprintf("# QUESTION\n%s\n\n# DOCUMENTS\n%s\n\nPlease provide a comprehensive answer based on the documents above.", question, docContext)
	return p.Generate(ctx, provider.Request{
		Model:  model,
		System: synthesisSystemPrompt,
		Prompt: prompt,
		Format: schema,
	})
}
