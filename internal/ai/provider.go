// Package ai talks to LLM providers to extract invoice fields from noisy
// OCR text and to generate savings advice. Providers are interchangeable;
// structured responses go through a JSON repair pipeline because models
// routinely wrap output in fences or produce slightly broken JSON.
package ai

import "context"

// GenerateRequest is a single completion request. When JSONOutput is set
// the provider asks the model for a JSON-only response; the caller still
// has to repair and validate what comes back.
type GenerateRequest struct {
	System     string
	Prompt     string
	JSONOutput bool
}

// Provider abstracts an LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
