package ai

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/config"
)

// NewGenerator builds the generator for the configured provider. gemini may
// be nil for providers other than Gemini.
func NewGenerator(ctx context.Context, cfg config.AIConfig, gemini *genai.Client) (Generator, error) {
	if !cfg.Enabled() {
		return nil, errors.Errorf("ai provider %q is not configured", cfg.Provider)
	}

	params := Params{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		if gemini == nil {
			return nil, errors.New("gemini client is required")
		}
		return NewGeminiGenerator(gemini, cfg.Gemini.Model, params), nil
	case config.ProviderArk:
		chatModel, err := cfg.NewArkChatModel(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "create ark chat model")
		}
		return NewArkGenerator(ctx, chatModel)
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(cfg.OpenAI, params), nil
	}
	return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
}

// Params are the sampling settings shared by every provider.
type Params struct {
	Temperature float32
	TopP        float32
	TopK        float32
}
