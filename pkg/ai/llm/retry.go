package llm

import (
	"context"

	"github.com/chriscow/voicechat/pkg/ai"
)

type retryingLLM struct {
	next LLM
	cfg  ai.RetryConfig
}

// WithRetry wraps l so that Chat retries recoverable failures as configured.
func WithRetry(l LLM, cfg ai.RetryConfig) LLM {
	return &retryingLLM{next: l, cfg: cfg}
}

func (r *retryingLLM) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	err := ai.Retry(ctx, r.cfg, func(ctx context.Context) error {
		var err error
		resp, err = r.next.Chat(ctx, req)
		return err
	})
	return resp, err
}
