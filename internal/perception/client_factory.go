package perception

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// NewClient builds an LLMClient for the configured provider.
func NewClient(ctx context.Context, config ClientConfig, logger *zap.Logger) (LLMClient, error) {
	switch config.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClientWithConfig(config, logger), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}

// DetectProvider resolves provider and API key from environment variables.
// Priority: OPENAI_API_KEY > GEMINI_API_KEY.
func DetectProvider() (ClientConfig, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return DefaultOpenAIConfig(key), nil
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return ClientConfig{Provider: ProviderGemini, APIKey: key}, nil
	}
	return ClientConfig{}, fmt.Errorf("no API key found; set OPENAI_API_KEY or GEMINI_API_KEY")
}

// NewClientFromEnv creates an LLM client based on environment variables.
func NewClientFromEnv(ctx context.Context, logger *zap.Logger) (LLMClient, error) {
	config, err := DetectProvider()
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, config, logger)
}
