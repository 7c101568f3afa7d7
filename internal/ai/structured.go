package ai

import (
	"context"

	"github.com/rs/zerolog"
)

// generateStructured asks the provider for a JSON response and decodes it
// into T through the repair pipeline. It never fails: any provider or
// decoding error is logged and the fallback value returned, so callers
// always have something coherent to show the user.
func generateStructured[T any](ctx context.Context, p Provider, log zerolog.Logger, prompt string, fallback T) T {
	raw, err := p.Generate(ctx, GenerateRequest{Prompt: prompt, JSONOutput: true})
	if err != nil {
		log.Error().Err(err).Str("provider", p.Name()).Msg("AI generation failed, returning fallback")
		return fallback
	}

	var out T
	if err := decodeLoose(raw, &out); err != nil {
		log.Error().Err(err).Str("provider", p.Name()).Msg("AI response not parseable as JSON, returning fallback")
		return fallback
	}
	return out
}
