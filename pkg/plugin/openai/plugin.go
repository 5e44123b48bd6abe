// Package openai registers the "openai" chat completion provider. It speaks
// to any OpenAI-compatible endpoint.
package openai

import (
	"os"

	"github.com/chriscow/voicechat/pkg/ai/llm"
	"github.com/chriscow/voicechat/pkg/plugin"
)

// newOpenAILLM is the factory function for the OpenAI provider.
func newOpenAILLM(cfg map[string]any) (llm.LLM, error) {
	config := Config{}

	// Get API key from config or environment
	if key, ok := cfg["api_key"].(string); ok && key != "" {
		config.APIKey = key
	} else {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if baseURL, ok := cfg["base_url"].(string); ok {
		config.BaseURL = baseURL
	}
	if model, ok := cfg["model"].(string); ok {
		config.Model = model
	}

	return NewLLM(config)
}

func init() {
	plugin.Register(&plugin.Plugin{
		Name:        "openai",
		Factory:     newOpenAILLM,
		Description: "OpenAI-compatible chat completion service",
		Config: map[string]any{
			"api_key":  "API key (or set OPENAI_API_KEY env var)",
			"base_url": "OpenAI-compatible endpoint, empty for OpenAI",
			"model":    "gpt-4o-mini",
		},
	})
}
