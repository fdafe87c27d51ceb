package llm

import (
	"context"
	"fmt"

	"github.com/brandpulse/social-mentions-bot/internal/config"
)

// New builds the Completer selected by LLM_PROVIDER
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAIClient(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMRPS), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "", cfg.LLMRPS)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
