package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chriscow/voicechat/pkg/ai/llm"
)

// FakeLLM cycles through canned responses and records every request.
type FakeLLM struct {
	// Err, when set, is returned by every Chat call
	Err error

	mu        sync.Mutex
	responses []string
	requests  []llm.ChatRequest
}

// NewFakeLLM creates a new fake LLM provider with predefined responses.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{"This is a fake response from the fake LLM provider."}
	}
	return &FakeLLM{responses: responses}
}

// Chat returns the next canned response. A "%s" in the response is replaced
// by the last user message.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.Err != nil {
		return llm.ChatResponse{}, f.Err
	}
	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}

	response := f.responses[(len(f.requests)-1)%len(f.responses)]
	if strings.Contains(response, "%s") {
		var last string
		for _, m := range req.Messages {
			if m.Role == llm.RoleUser {
				last = m.Content
			}
		}
		response = fmt.Sprintf(response, last)
	}

	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: response},
		TokensUsed:   len(strings.Fields(response)) + 10,
		FinishReason: "stop",
	}, nil
}

// Requests returns every request received so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.requests...)
}
