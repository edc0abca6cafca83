package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/swipe-story/internal/auth"
	"github.com/fpang/swipe-story/internal/narrator"
)

// KeySource resolves service API keys; *auth.Resolver implements it.
type KeySource interface {
	APIKey(ctx context.Context, service string) (string, error)
}

// InitNarrator creates a Gemini-backed narrator and validates its key.
// It returns nil when no Gemini key is configured, in which case storybooks
// use the caption templates. Any other failure exits fatally.
func InitNarrator(ctx context.Context, keys KeySource, model string, validate bool) *narrator.Narrator {
	apiKey, err := keys.APIKey(ctx, "gemini")
	if err != nil {
		if auth.IsMissingKey(err) {
			log.Info().Msg("No Gemini API key configured - storybooks will use caption templates")
			return nil
		}
		log.Fatal().Err(err).Msg("failed to retrieve Gemini API key")
	}

	n, _, err := narrator.NewFromAPIKey(ctx, apiKey, model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}
	log.Info().Str("model", n.Model()).Msg("Gemini client initialized")

	if validate {
		if err := n.ValidateAPIKey(ctx); err != nil {
			HandleValidationError(err)
		}
		log.Info().Msg("API key validation complete - ready for operations")
	}
	return n
}
