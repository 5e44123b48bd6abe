// Package fake registers the "fake" chat completion provider, which echoes
// the user's message without calling any remote service.
package fake

import (
	"github.com/chriscow/voicechat/pkg/ai/llm"
	llmfake "github.com/chriscow/voicechat/pkg/ai/llm/fake"
	"github.com/chriscow/voicechat/pkg/plugin"
)

// DefaultResponse is used when no responses are configured.
const DefaultResponse = "You said: %s"

func newFakeLLM(cfg map[string]any) (llm.LLM, error) {
	responses := []string{DefaultResponse}
	if r, ok := cfg["responses"].([]string); ok && len(r) > 0 {
		responses = r
	}
	return llmfake.NewFakeLLM(responses...), nil
}

func init() {
	plugin.Register(&plugin.Plugin{
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Echoing provider for development without an API key",
		Config: map[string]any{
			"responses": []string{DefaultResponse},
		},
	})
}
