package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/shop-kiosk/internal/ai"
	"github.com/kozaktomas/shop-kiosk/internal/config"
)

// Prices per 1M tokens in USD.
var (
	geminiPricing = ai.RequestPricing{Input: 0.30, Output: 2.50}
	openAIPricing = ai.RequestPricing{Input: 0.40, Output: 1.60}
)

// newDescriber returns the describer for provider ("gemini", "openai" or "" for
// whichever has a key configured). It returns nil, nil when nothing is configured
// and provider is empty.
func newDescriber(ctx context.Context, cfg *config.Config, provider string) (ai.Describer, error) {
	switch provider {
	case "":
		switch {
		case cfg.Gemini.APIKey != "":
			return newDescriber(ctx, cfg, "gemini")
		case cfg.OpenAI.Token != "":
			return newDescriber(ctx, cfg, "openai")
		}
		return nil, nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
		}
		p, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, geminiPricing)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		return p, nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, fmt.Errorf("OPENAI_TOKEN environment variable is required")
		}
		return ai.NewOpenAIProvider(cfg.OpenAI.Token, openAIPricing), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: gemini, openai)", provider)
	}
}
